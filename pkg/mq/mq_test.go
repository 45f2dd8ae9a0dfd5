package mq

import (
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestHeaderConversion(t *testing.T) {
	t.Run("空消息头", func(t *testing.T) {
		assert.Nil(t, toTable(nil))
		assert.Empty(t, fromTable(nil))
	})

	t.Run("往返", func(t *testing.T) {
		in := map[string]string{"event_id": "e-1", "traceparent": "00-abc-def-01"}
		assert.Equal(t, in, fromTable(toTable(in)))
	})

	t.Run("忽略非字符串值", func(t *testing.T) {
		out := fromTable(amqp.Table{"a": "x", "b": []byte("y"), "c": int32(3)})
		assert.Equal(t, map[string]string{"a": "x", "b": "y"}, out)
	})
}

func TestErrPermanentWrapping(t *testing.T) {
	err := fmt.Errorf("解析支付事件失败: %w", ErrPermanent)
	assert.ErrorIs(t, err, ErrPermanent)
}
