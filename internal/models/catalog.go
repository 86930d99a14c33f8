package models

// Level is a skill tier shared by essay types and teachers.
type Level struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// EssayType is a priced essay category bound to one level.
type EssayType struct {
	ID      int     `db:"id" json:"id"`
	LevelID int     `db:"level_id" json:"level_id"`
	Name    string  `db:"name" json:"name"`
	Price   float64 `db:"price" json:"price"`
}

// OptionKind distinguishes flat add-ons from rush delivery windows.
type OptionKind string

const (
	OptionKindAddon OptionKind = "ADDON"
	OptionKindRush  OptionKind = "RUSH"
)

// OptionFeature marks add-ons that provision grading rows.
type OptionFeature string

const (
	OptionFeatureNone      OptionFeature = ""
	OptionFeatureCriteria  OptionFeature = "CRITERIA"
	OptionFeatureExtraNote OptionFeature = "EXTRA_NOTE"
)

// Option is a purchasable add-on. RUSH options encode their window in hours in Name.
type Option struct {
	ID        int           `db:"id" json:"id"`
	Kind      OptionKind    `db:"kind" json:"kind"`
	Name      string        `db:"name" json:"name"`
	Price     float64       `db:"price" json:"price"`
	Feature   OptionFeature `db:"feature" json:"feature,omitempty"`
	RushHours int           `db:"-" json:"rush_hours,omitempty"`
}

// StatusRef is a row of the order status lookup table.
type StatusRef struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Criterion is one row of the grading rubric.
type Criterion struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Quote is the priced outcome of an essay type plus selected options.
type Quote struct {
	Type       EssayType `json:"type"`
	Options    []Option  `json:"options"`
	TotalPrice float64   `json:"total_price"`
	RushHours  int       `json:"rush_hours"`
}
