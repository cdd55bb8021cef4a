package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fitsuite/licensehub/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InboxMessage is the in-app notification shown to a tenant.
type InboxMessage struct {
	TenantID  string         `gorm:"primaryKey;type:varchar(128)" json:"tenant_id"`
	ID        string         `gorm:"primaryKey;type:varchar(160)" json:"id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Source    string         `gorm:"type:varchar(32);not null" json:"source"`
	Title     string         `gorm:"type:varchar(255)" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	Unread    bool           `gorm:"not null;default:true" json:"unread"`
	CreatedAt time.Time      `gorm:"not null;index:idx_inbox_tenant_created,priority:2" json:"created_at"`
}

func (InboxMessage) TableName() string { return "inbox_messages" }

func Models() []any {
	return []any{&InboxMessage{}}
}

type InboxSink struct {
	db *gorm.DB
}

func NewInboxSink(db *gorm.DB) *InboxSink {
	return &InboxSink{db: db}
}

func (s *InboxSink) Name() string { return "inbox" }

// Send writes at most one row per event id; redelivered events are no-ops.
func (s *InboxSink) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Details)
	if err != nil {
		return err
	}
	msg := InboxMessage{
		TenantID:  ev.TenantID,
		ID:        ev.ID,
		Type:      ev.Type,
		Source:    ev.Source,
		Title:     ev.Title,
		Body:      ev.Body,
		Payload:   datatypes.JSON(payload),
		Unread:    true,
		CreatedAt: ev.OccurredAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "id"}},
			DoNothing: true,
		}).
		Create(&msg).Error
}

// ListInbox pages a tenant's messages newest first.
func ListInbox(ctx context.Context, db *gorm.DB, tenantID string, page pagination.Pagination) ([]InboxMessage, pagination.PageInfo, error) {
	limit := page.Limit()
	query := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []InboxMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}
	return pagination.BuildCursorPage(rows, limit, func(m InboxMessage) pagination.Cursor {
		return pagination.Cursor{ID: m.ID, CreatedAt: m.CreatedAt}
	})
}

// MarkRead clears the unread flag on one message.
func MarkRead(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	return db.WithContext(ctx).
		Model(&InboxMessage{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("unread", false).Error
}
