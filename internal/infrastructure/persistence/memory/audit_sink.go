package memory

import (
	"context"

	"github.com/xiebiao/storefront/internal/domain/audit"
)

type auditSink struct {
	s *Store
}

// NewAuditSink 审计日志写入端，随事务回滚
func NewAuditSink(s *Store) audit.Sink {
	return &auditSink{s: s}
}

func (a *auditSink) Record(ctx context.Context, entry audit.Entry) error {
	return a.s.run(ctx, func(d *state) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = a.s.now()
		}
		d.audits = append(d.audits, entry)
		return nil
	})
}

// AuditEntries 已提交的审计记录（测试用）
func (s *Store) AuditEntries() []audit.Entry {
	var out []audit.Entry
	_ = s.run(context.Background(), func(d *state) error {
		out = append(out, d.audits...)
		return nil
	})
	return out
}
