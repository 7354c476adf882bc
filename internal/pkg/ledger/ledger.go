package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropSync/app/models"
)

// ErrNotFound is returned by Get for an unknown event id.
var ErrNotFound = errors.New("webhook event not found")

// InsertResult reports whether the event id was already recorded.
type InsertResult struct {
	Duplicate bool
}

// Ledger is the append-only record of accepted deliveries.
type Ledger interface {
	Insert(ctx context.Context, event *models.WebhookEvent) (InsertResult, error)
	Get(ctx context.Context, eventID string) (*models.WebhookEvent, error)
}

type gormLedger struct {
	db *gorm.DB
}

// New creates a ledger backed by GORM.
func New(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

// Insert writes the event unless its id exists. The unique index on event_id
// decides which of two concurrent deliveries wins; an existing row is never
// touched.
func (l *gormLedger) Insert(ctx context.Context, event *models.WebhookEvent) (InsertResult, error) {
	tx := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return InsertResult{}, tx.Error
	}
	return InsertResult{Duplicate: tx.RowsAffected == 0}, nil
}

func (l *gormLedger) Get(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
