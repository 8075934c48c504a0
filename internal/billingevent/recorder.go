package billingevent

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/billingevent/domain"
)

// Recorder appends outbox rows. Consumers drain them out of band.
type Recorder struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewRecorder(db *gorm.DB, genID *snowflake.Node) *Recorder {
	return &Recorder{db: db, genID: genID}
}

func (r *Recorder) Append(ctx context.Context, eventType string, payload map[string]any) error {
	event := &domain.BillingEvent{
		ID:        r.genID.Generate(),
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
	}
	return r.db.WithContext(ctx).Create(event).Error
}
