package service

import (
	"context"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// OrderStore persists orders and their analysis enrichment.
type OrderStore interface {
	orderStore
	SaveAnalysis(ctx context.Context, id string, analysis models.Analysis) error
}

// CatalogStore reads reference data.
type CatalogStore interface{ catalogStore }

// CapacityStore keeps teacher capacity records.
type CapacityStore interface{ capacityStore }

// PaymentStore holds wallets and receipts.
type PaymentStore interface{ paymentStore }

// ResultStore holds grading records.
type ResultStore interface{ resultStore }

// Stores bundles one persistence backend. Postgres and the in-memory store both provide a full set.
type Stores struct {
	Orders   OrderStore
	Catalog  CatalogStore
	Capacity CapacityStore
	Payments PaymentStore
	Results  ResultStore
}
