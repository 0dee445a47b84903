package model

import (
	"slices"
	"time"
)

type Kid struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Chore struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Stars      int       `json:"stars"`
	Recurrence string    `json:"recurrence"`
	AssignedTo []string  `json:"assigned_to"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssignedToKid reports whether the chore is assigned to the given kid.
// A chore with no assignments belongs to everyone.
func (c Chore) AssignedToKid(kidID string) bool {
	if len(c.AssignedTo) == 0 {
		return true
	}
	return slices.Contains(c.AssignedTo, kidID)
}

type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionApproved CompletionStatus = "approved"
)

// Completion records a kid marking a chore done. Stars are snapshotted from
// the chore at completion time so later chore edits leave history alone.
type Completion struct {
	ID          string           `json:"id"`
	ChoreID     string           `json:"chore_id"`
	KidID       string           `json:"kid_id"`
	Stars       int              `json:"stars"`
	Status      CompletionStatus `json:"status"`
	CompletedAt time.Time        `json:"completed_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
}

type Reward struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Cost         int       `json:"cost"`
	EligibleKids []string  `json:"eligible_kids"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EligibleFor reports whether the given kid may redeem the reward.
// An empty eligible set means every kid qualifies.
func (r Reward) EligibleFor(kidID string) bool {
	if len(r.EligibleKids) == 0 {
		return true
	}
	return slices.Contains(r.EligibleKids, kidID)
}

// Redemption records a reward purchase. Cost is snapshotted at redemption
// time, independent of later reward edits.
type Redemption struct {
	ID         string    `json:"id"`
	RewardID   string    `json:"reward_id"`
	KidID      string    `json:"kid_id"`
	Cost       int       `json:"cost"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

type StarBalance struct {
	KidID   string `json:"kid_id"`
	KidName string `json:"kid_name"`
	Earned  int    `json:"earned"`
	Spent   int    `json:"spent"`
	Balance int    `json:"balance"`
}
