package order

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 订单领域错误定义
var (
	// ErrOrderNotFound 订单不存在（也用于访问他人订单，避免泄露订单是否存在）
	ErrOrderNotFound = apperrors.New(apperrors.ErrCodeOrderNotFound, "订单不存在")

	// ErrInvalidStatusTransition 非法的状态转换
	ErrInvalidStatusTransition = apperrors.New(apperrors.ErrCodeInvalidOrderStatus, "订单状态不允许此操作")

	// ErrInvalidPaymentTransition 非法的支付状态转换
	ErrInvalidPaymentTransition = apperrors.New(apperrors.ErrCodeInvalidPaymentStatus, "支付状态不允许此变更")

	// ErrDuplicateOrderNo 订单号冲突（唯一索引），调用方重新生成后重试
	ErrDuplicateOrderNo = apperrors.New(apperrors.ErrCodeDuplicateOrderNo, "订单号冲突")

	// ErrOrderNoGenerate 多次重试后仍然冲突
	ErrOrderNoGenerate = apperrors.New(apperrors.ErrCodeInternal, "订单号生成失败")

	// ErrInvalidShippingInfo 收货人和地址必填
	ErrInvalidShippingInfo = apperrors.New(apperrors.ErrCodeInvalidShippingInfo, "收货人和收货地址不能为空")
)
