package model

import "time"

// Event is a single calendar entry within one day document.
// Start and End are wall-clock times in "15:04" form; an all-day event
// leaves both empty.
type Event struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Start      string    `json:"start,omitempty"`
	End        string    `json:"end,omitempty"`
	Preset     string    `json:"preset"`
	Recurrence string    `json:"recurrence,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Preset is one fixed, named color/style combination an event may use.
// Ad hoc combinations are rejected, never corrected.
type Preset struct {
	Name       string `json:"name"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}
