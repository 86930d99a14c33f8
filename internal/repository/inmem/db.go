// Package inmem keeps every store in process memory behind one lock, so a capacity
// change and the order transition it belongs to are applied as one step.
package inmem

import (
	"sync"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// DB holds all tables.
type DB struct {
	mu sync.RWMutex

	levels   []models.Level
	types    map[int]models.EssayType
	options  map[int]models.Option
	statuses []models.StatusRef
	criteria []models.Criterion

	orders   map[string]*models.Order
	teachers map[string]*models.TeacherCapacity
	free     map[int]int
	results  map[string]*models.Result // keyed by order id
	comments map[string][]models.EssayComment
	wallets  map[string]*models.Wallet
	receipts []*models.Receipt
}

// Catalog is the reference data loaded into a DB.
type Catalog struct {
	Levels   []models.Level
	Types    []models.EssayType
	Options  []models.Option
	Criteria []models.Criterion
}

// DefaultCatalog mirrors the rows seeded by the SQL migrations.
func DefaultCatalog() Catalog {
	return Catalog{
		Levels: []models.Level{{ID: 0, Name: "Basic"}, {ID: 1, Name: "Advanced"}},
		Types: []models.EssayType{
			{ID: 1, LevelID: 0, Name: "General Writing", Price: 10},
			{ID: 2, LevelID: 1, Name: "Academic Writing", Price: 15},
		},
		Options: []models.Option{
			{ID: 1, Kind: models.OptionKindAddon, Name: "Rubric scoring", Price: 5, Feature: models.OptionFeatureCriteria},
			{ID: 2, Kind: models.OptionKindAddon, Name: "Vocabulary notes", Price: 3, Feature: models.OptionFeatureExtraNote},
			{ID: 3, Kind: models.OptionKindAddon, Name: "Structure notes", Price: 3, Feature: models.OptionFeatureExtraNote},
			{ID: 4, Kind: models.OptionKindRush, Name: "24", Price: 8},
			{ID: 5, Kind: models.OptionKindRush, Name: "48", Price: 4},
		},
		Criteria: []models.Criterion{
			{ID: 1, Name: "Task Response"},
			{ID: 2, Name: "Coherence and Cohesion"},
			{ID: 3, Name: "Lexical Resource"},
			{ID: 4, Name: "Grammatical Range and Accuracy"},
		},
	}
}

// NewDB builds an empty database loaded with catalog.
func NewDB(catalog Catalog) *DB {
	db := &DB{
		levels:   append([]models.Level(nil), catalog.Levels...),
		types:    make(map[int]models.EssayType, len(catalog.Types)),
		options:  make(map[int]models.Option, len(catalog.Options)),
		criteria: append([]models.Criterion(nil), catalog.Criteria...),
		orders:   make(map[string]*models.Order),
		teachers: make(map[string]*models.TeacherCapacity),
		free:     make(map[int]int),
		results:  make(map[string]*models.Result),
		comments: make(map[string][]models.EssayComment),
		wallets:  make(map[string]*models.Wallet),
	}
	for _, t := range catalog.Types {
		db.types[t.ID] = t
	}
	for _, o := range catalog.Options {
		db.options[o.ID] = o
	}
	for s := models.OrderStatusDraft; s <= models.OrderStatusExpired; s++ {
		db.statuses = append(db.statuses, models.StatusRef{ID: int(s), Name: s.String()})
	}
	for _, l := range catalog.Levels {
		db.free[l.ID] = 0
	}
	return db
}
