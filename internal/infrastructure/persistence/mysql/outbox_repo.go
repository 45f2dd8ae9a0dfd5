package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/pkg/outbox"
)

// OutboxStore 发件箱，同时实现outbox.Writer（业务事务内追加）和outbox.Store（中继领取）
type OutboxStore struct {
	db *gorm.DB
}

// NewOutboxStore 创建发件箱存储
func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Append 追加事件，必须在业务事务中调用
func (s *OutboxStore) Append(ctx context.Context, e *outbox.Event) error {
	model := &OutboxEventModel{
		EventID:       e.EventID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.Type,
		Payload:       string(e.Payload),
		Headers:       e.Headers,
		Traceparent:   e.Traceparent,
		Status:        string(outbox.StatusPending),
	}
	if err := getDB(ctx, s.db).Create(model).Error; err != nil {
		return err
	}
	e.ID = model.ID
	e.CreatedAt = model.CreatedAt
	return nil
}

// LockBatch 领取一批事件
//
//	SELECT ... FROM outbox_events
//	WHERE status = 'pending' OR (status = 'in_progress' AND locked_until < NOW())
//	ORDER BY id LIMIT ? FOR UPDATE SKIP LOCKED
//
// 多个中继实例并发领取时互不阻塞，租约过期的事件（中继崩溃）会被重新领取
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var events []outbox.Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var models []OutboxEventModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND locked_until < ?)", outbox.StatusPending, outbox.StatusInProgress, now).
			Order("id ASC").
			Limit(batchSize).
			Find(&models).Error
		if err != nil || len(models) == 0 {
			return err
		}

		ids := make([]uint, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}
		err = tx.Model(&OutboxEventModel{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":       outbox.StatusInProgress,
			"locked_by":    relayID,
			"locked_until": now.Add(lease),
		}).Error
		if err != nil {
			return err
		}

		events = make([]outbox.Event, len(models))
		for i, m := range models {
			events[i] = outbox.Event{
				ID:            m.ID,
				EventID:       m.EventID,
				AggregateType: m.AggregateType,
				AggregateID:   m.AggregateID,
				Type:          m.EventType,
				Payload:       []byte(m.Payload),
				Headers:       m.Headers,
				Traceparent:   m.Traceparent,
				Status:        outbox.StatusInProgress,
				RetryCount:    m.RetryCount,
				LastError:     m.LastError,
				CreatedAt:     m.CreatedAt,
			}
		}
		return nil
	})
	return events, err
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []uint) error {
	return s.db.WithContext(ctx).Model(&OutboxEventModel{}).Where("id IN ?", ids).Updates(map[string]interface{}{
		"status":       outbox.StatusSent,
		"locked_by":    "",
		"locked_until": nil,
	}).Error
}

// MarkFailed 重试次数达到上限后不再领取
func (s *OutboxStore) MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error {
	return s.db.WithContext(ctx).Model(&OutboxEventModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"retry_count":  gorm.Expr("retry_count + 1"),
		"last_error":   errMsg,
		"locked_by":    "",
		"locked_until": nil,
		"status": gorm.Expr("CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END",
			maxRetries, outbox.StatusFailed, outbox.StatusPending),
	}).Error
}
