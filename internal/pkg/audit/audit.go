package audit

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PropSync/app/models"
)

// Actions recorded by the ingestion and admin paths.
const (
	ActionWebhookRejected      = "webhook.rejected"
	ActionWebhookTooLarge      = "webhook.payload_too_large"
	ActionWebhookLedgerFailed  = "webhook.ledger_failed"
	ActionWebhookInvalid       = "webhook.validation_failed"
	ActionWebhookProjectionErr = "webhook.projection_failed"
	ActionReconcileCompleted   = "reconcile.completed"
	ActionReconcileFailed      = "reconcile.failed"
	ActionAccountEnable        = "account.enable"
	ActionAccountDisable       = "account.disable"
	ActionAccountStatus        = "account.status"
	ActionSubscriptionCreate   = "subscription.create"
	ActionSubscriptionUpdate   = "subscription.update"
	ActionSubscriptionActivate = "subscription.activate"
	ActionSubscriptionDisable  = "subscription.deactivate"
	ActionSubscriptionDelete   = "subscription.delete"
	ActionUserCreate           = "user.create"
	ActionUserUpdate           = "user.update"
)

const SystemActor = "system"

// Entry is one audit record.
type Entry struct {
	Action        string
	Actor         string
	TargetType    string
	TargetID      string
	CorrelationID string
	Metadata      map[string]any
}

// Recorder is a fire-and-forget sink. Implementations must not fail the
// caller; problems are logged.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, entry Entry)

func (f RecorderFunc) Record(ctx context.Context, entry Entry) { f(ctx, entry) }

// Nop discards every entry.
var Nop Recorder = RecorderFunc(func(context.Context, Entry) {})

type gormRecorder struct {
	db *gorm.DB
}

// NewRecorder writes entries to the audit_logs table.
func NewRecorder(db *gorm.DB) Recorder {
	return &gormRecorder{db: db}
}

func (r *gormRecorder) Record(ctx context.Context, entry Entry) {
	row := models.AuditLog{
		Action:        entry.Action,
		Actor:         entry.Actor,
		TargetType:    entry.TargetType,
		TargetID:      entry.TargetID,
		CorrelationID: entry.CorrelationID,
	}
	if row.Actor == "" {
		row.Actor = SystemActor
	}
	if len(entry.Metadata) > 0 {
		if b, err := json.Marshal(entry.Metadata); err == nil {
			row.MetadataJSON = string(b)
		} else {
			log.Warnf("[Audit] encode metadata for %s: %v", entry.Action, err)
		}
	}

	// Failure entries are often written after the request deadline fired.
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		log.Errorf("[Audit] failed to record %s for %s %s: %v", entry.Action, entry.TargetType, entry.TargetID, err)
	}
}
