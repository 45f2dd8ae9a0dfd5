package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNo 生成订单号
//
// 格式：ORD + YYYYMMDD + 8位随机后缀（大写十六进制）
// 示例：ORD20260115A3F09B1C
// 随机部分取自UUIDv4，冲突依赖唯一索引兜底，由调用方重试。
func GenerateOrderNo(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "ORD" + now.Format("20060102") + strings.ToUpper(suffix)
}
