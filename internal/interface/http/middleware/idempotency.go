package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/idempotency"
	"github.com/xiebiao/storefront/pkg/response"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// bodyRecorder 在写出响应的同时保留一份副本
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency 幂等请求中间件，必须挂在RequireAuth之后
//
// 没有Idempotency-Key时直接放行。key按用户隔离：
//   - 第一次请求执行并保存2xx响应，失败时释放key，客户端可以用同一个key重试
//   - 重复请求重放保存的响应，并带上Idempotent-Replayed: true
//   - 同一个key携带不同请求体时返回422，不重放
//   - 第一次请求仍在处理中时返回409
func Idempotency(store idempotency.Store, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, apperrors.ErrInvalidParams.WithMessage("Idempotency-Key过长"))
			c.Abort()
			return
		}

		fingerprint, err := bodyFingerprint(c)
		if err != nil {
			response.Error(c, apperrors.ErrBindError.WithErr(err))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		storeKey := fmt.Sprintf("%d:%s:%s", GetUserID(c), c.FullPath(), key)

		acquired, rec, err := store.Acquire(ctx, storeKey)
		if err != nil {
			response.Error(c, apperrors.ErrRedisError.WithErr(err))
			c.Abort()
			return
		}
		if !acquired {
			if rec == nil {
				response.Error(c, apperrors.ErrDuplicateRequest)
				c.Abort()
				return
			}
			if !rec.Matches(fingerprint) {
				response.Error(c, apperrors.ErrIdempotencyKeyReused)
				c.Abort()
				return
			}
			c.Header(HeaderReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		status := recorder.Status()
		if status >= 200 && status < 300 {
			if err := store.Save(ctx, storeKey, idempotency.Record{
				Status:      status,
				Body:        recorder.buf.Bytes(),
				Fingerprint: fingerprint,
			}); err != nil {
				log.Error("保存幂等响应失败", zap.String("key", key), zap.Error(err))
			}
			return
		}
		if err := store.Release(ctx, storeKey); err != nil {
			log.Error("释放幂等键失败", zap.String("key", key), zap.Error(err))
		}
	}
}

// bodyFingerprint 读取请求体计算sha256，并把请求体放回去供handler绑定
func bodyFingerprint(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
