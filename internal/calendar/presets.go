package calendar

import "github.com/rowanhall/hearth/internal/model"

// presets is the fixed table of color/style combinations an event may use.
// Requests naming anything else are rejected, never silently corrected.
var presets = []model.Preset{
	{Name: "sky", Foreground: "#0c4a6e", Background: "#e0f2fe"},
	{Name: "mint", Foreground: "#14532d", Background: "#dcfce7"},
	{Name: "amber", Foreground: "#78350f", Background: "#fef3c7"},
	{Name: "rose", Foreground: "#881337", Background: "#ffe4e6"},
	{Name: "violet", Foreground: "#4c1d95", Background: "#ede9fe"},
	{Name: "slate", Foreground: "#1e293b", Background: "#f1f5f9"},
}

// Presets returns the preset table in display order.
func Presets() []model.Preset {
	out := make([]model.Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByName looks up a preset by its name.
func PresetByName(name string) (model.Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return model.Preset{}, false
}
