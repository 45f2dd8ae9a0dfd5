package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xiebiao/storefront/pkg/outbox"
)

type outboxRow struct {
	event       outbox.Event
	lockedBy    string
	lockedUntil time.Time
}

func (r *outboxRow) clone() *outboxRow {
	cp := *r
	cp.event.Payload = append([]byte(nil), r.event.Payload...)
	cp.event.Headers = make(map[string]string, len(r.event.Headers))
	for k, v := range r.event.Headers {
		cp.event.Headers[k] = v
	}
	return &cp
}

// OutboxStore 同时实现outbox.Writer和outbox.Store
type OutboxStore struct {
	s *Store
}

// NewOutboxStore 创建内存发件箱
func NewOutboxStore(s *Store) *OutboxStore {
	return &OutboxStore{s: s}
}

func (o *OutboxStore) Append(ctx context.Context, e *outbox.Event) error {
	return o.s.run(ctx, func(d *state) error {
		e.ID = d.nextID("outbox_events")
		if e.Status == "" {
			e.Status = outbox.StatusPending
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = o.s.now()
		}
		row := &outboxRow{event: *e}
		d.outbox[e.ID] = row.clone()
		return nil
	})
}

func (o *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var out []outbox.Event
	err := o.s.run(ctx, func(d *state) error {
		now := o.s.now()
		ids := make([]uint, 0, len(d.outbox))
		for id, row := range d.outbox {
			claimable := row.event.Status == outbox.StatusPending ||
				(row.event.Status == outbox.StatusInProgress && row.lockedUntil.Before(now))
			if claimable {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if len(ids) > batchSize {
			ids = ids[:batchSize]
		}
		for _, id := range ids {
			row := d.outbox[id]
			row.event.Status = outbox.StatusInProgress
			row.lockedBy = relayID
			row.lockedUntil = now.Add(lease)
			out = append(out, row.clone().event)
		}
		return nil
	})
	return out, err
}

func (o *OutboxStore) MarkSent(ctx context.Context, ids []uint) error {
	return o.s.run(ctx, func(d *state) error {
		for _, id := range ids {
			if row, ok := d.outbox[id]; ok {
				row.event.Status = outbox.StatusSent
				row.lockedBy = ""
			}
		}
		return nil
	})
}

func (o *OutboxStore) MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error {
	return o.s.run(ctx, func(d *state) error {
		row, ok := d.outbox[id]
		if !ok {
			return nil
		}
		row.event.RetryCount++
		row.event.LastError = errMsg
		row.lockedBy = ""
		if row.event.RetryCount >= maxRetries {
			row.event.Status = outbox.StatusFailed
		} else {
			row.event.Status = outbox.StatusPending
		}
		return nil
	})
}

// Events 全部事件（按ID升序，测试用）
func (o *OutboxStore) Events() []outbox.Event {
	var out []outbox.Event
	_ = o.s.run(context.Background(), func(d *state) error {
		for _, row := range d.outbox {
			out = append(out, row.clone().event)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
