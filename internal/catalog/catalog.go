// Package catalog defines the fixed background and font catalogs and the
// plan-based gating over them. Catalog ids are 1-based and ordered by
// unlock tier: an entry is selectable iff its id does not exceed the
// plan's unlocked count for that kind.
package catalog

import (
	"github.com/animequotestudio/studio/pkg/models"
)

// Kind distinguishes the two catalogs
type Kind string

const (
	KindBackground Kind = "background"
	KindFont       Kind = "font"
)

// Background is a selectable gradient background
type Background struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	CSS  string `json:"css"`
}

// Font is a selectable font
type Font struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

var backgrounds = []Background{
	{ID: 1, Name: "Midnight", CSS: "linear-gradient(135deg, #111827 0%, #1f2937 100%)"},
	{ID: 2, Name: "Indigo Glow", CSS: "linear-gradient(135deg, #312e81 0%, #4f46e5 100%)"},
	{ID: 3, Name: "Sakura", CSS: "linear-gradient(135deg, #f472b6 0%, #fb7185 100%)"},
	{ID: 4, Name: "Neon Blue", CSS: "linear-gradient(135deg, #1d4ed8 0%, #22c55e 100%)"},
	{ID: 5, Name: "Sunset", CSS: "linear-gradient(135deg, #f97316 0%, #ec4899 100%)"},
	{ID: 6, Name: "Void", CSS: "linear-gradient(135deg, #020817 0%, #111827 100%)"},
	{ID: 7, Name: "Royal Purple", CSS: "linear-gradient(135deg, #4c1d95 0%, #7c3aed 100%)"},
	{ID: 8, Name: "Aurora", CSS: "linear-gradient(135deg, #4f46e5 0%, #a855f7 50%, #ec4899 100%)"},
}

var fonts = []Font{
	{ID: 1, Name: "Serif Classic", Family: "Georgia, serif"},
	{ID: 2, Name: "Modern Sans", Family: "Inter, system-ui, sans-serif"},
	{ID: 3, Name: "Bold Impact", Family: "Impact, system-ui, sans-serif"},
}

// Backgrounds returns the fixed background catalog
func Backgrounds() []Background {
	return backgrounds
}

// Fonts returns the fixed font catalog
func Fonts() []Font {
	return fonts
}

// BackgroundByID returns the background with the given id, falling back
// to the first entry.
func BackgroundByID(id int) Background {
	for _, b := range backgrounds {
		if b.ID == id {
			return b
		}
	}
	return backgrounds[0]
}

// FontByID returns the font with the given id, falling back to the first
// entry.
func FontByID(id int) Font {
	for _, f := range fonts {
		if f.ID == id {
			return f
		}
	}
	return fonts[0]
}

// UnlockedCount returns how many entries of a kind the plan unlocks
func UnlockedCount(kind Kind, p models.PlanDescriptor) int {
	if kind == KindFont {
		return p.Fonts
	}
	return p.Backgrounds
}

// IsUnlocked reports whether the catalog entry is selectable on the plan
func IsUnlocked(id int, kind Kind, p models.PlanDescriptor) bool {
	return id >= 1 && id <= UnlockedCount(kind, p)
}

// SelectResult signals the outcome of a selection attempt
type SelectResult int

const (
	Selected SelectResult = iota
	UpgradeRequired
	NotFound
)

// Select attempts to select a catalog entry. A locked or unknown entry
// leaves the current selection unchanged; UpgradeRequired is a signal
// value for the caller, not an error.
func Select(current, id int, kind Kind, p models.PlanDescriptor) (int, SelectResult) {
	if !exists(id, kind) {
		return current, NotFound
	}
	if !IsUnlocked(id, kind, p) {
		return current, UpgradeRequired
	}
	return id, Selected
}

// ClampSelection re-validates a selection against the current plan. A
// selection that became locked (plan downgraded between loads) clamps to
// the first unlocked entry. Called on every render, not just at
// selection time.
func ClampSelection(current int, kind Kind, p models.PlanDescriptor) int {
	if IsUnlocked(current, kind, p) {
		return current
	}
	return 1
}

func exists(id int, kind Kind) bool {
	if kind == KindFont {
		return id >= 1 && id <= len(fonts)
	}
	return id >= 1 && id <= len(backgrounds)
}
