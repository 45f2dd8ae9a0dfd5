package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/audit"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

type auditSink struct {
	db *gorm.DB
}

// NewAuditSink 审计日志写入audit_logs表，与业务写入同一事务
func NewAuditSink(db *gorm.DB) audit.Sink {
	return &auditSink{db: db}
}

func (s *auditSink) Record(ctx context.Context, e audit.Entry) error {
	model := &AuditLogModel{
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		OldValues:  e.OldValues,
		NewValues:  e.NewValues,
		ActorID:    e.ActorID,
		CreatedAt:  e.CreatedAt,
	}
	if err := getDB(ctx, s.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "写入审计日志失败")
	}
	return nil
}
