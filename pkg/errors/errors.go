package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（HTTP状态码由Code所在区间推导）
// 2. Message是用户友好的提示信息
// 3. Details携带出错资源的标识（如variant_id），便于客户端定位
// 4. Err是内部错误，仅记录到日志，不返回给客户端（防止泄露敏感信息）
type AppError struct {
	Code    int                    `json:"code"`              // 业务错误码
	Message string                 `json:"message"`           // 用户友好的错误提示
	Details map[string]interface{} `json:"details,omitempty"` // 出错资源信息
	Err     error                  `json:"-"`                 // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较
// 预定义错误经WithDetails/WithMessage派生后，errors.Is仍能匹配原哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails 返回附带资源信息的副本（哨兵错误本身不被修改）
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// WithMessage 返回替换提示信息的副本
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithErr 返回携带内部原因的副本
func (e *AppError) WithErr(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// Kind 错误分类
func (e *AppError) Kind() Kind {
	return KindOf(e.Code)
}

// HTTPStatus 错误对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	return e.Kind().HTTPStatus()
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// =========================================
// 错误分类
// =========================================

// Kind 错误类别，决定HTTP/gRPC状态码
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnprocessable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnprocessable:
		return "unprocessable"
	default:
		return "internal"
	}
}

// HTTPStatus 类别对应的HTTP状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// KindOf 根据错误码区间推导类别
func KindOf(code int) Kind {
	switch {
	case code == ErrCodeForbidden:
		return KindForbidden
	case code >= 40100 && code < 40200:
		return KindUnauthorized
	case code >= 40400 && code < 40500:
		return KindNotFound
	case code >= 40900 && code < 41000:
		return KindConflict
	case code >= 42200 && code < 42300:
		return KindUnprocessable
	case code >= 40000 && code < 40100:
		return KindValidation
	default:
		return KindInternal
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 400xx: 参数错误、业务规则校验失败
// - 401xx: 认证授权
// - 404xx: 资源不存在
// - 409xx: 并发冲突、重复请求
// - 422xx: 请求语义冲突（幂等键对应的请求内容不一致）
// - 500xx: 服务端错误（数据库异常、外部服务调用失败）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal      = 50000 // 内部错误
	ErrCodeDatabaseError = 50001 // 数据库错误
	ErrCodeRedisError    = 50002 // Redis错误
	ErrCodeMessageError  = 50003 // 消息队列错误

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized = 40100 // 未登录
	ErrCodeInvalidToken = 40101 // Token无效
	ErrCodeTokenExpired = 40102 // Token过期
	ErrCodeForbidden    = 40104 // 无权限

	// 资源错误（40400-40499）
	ErrCodeNotFound         = 40400 // 资源不存在(通用)
	ErrCodeOrderNotFound    = 40403 // 订单不存在
	ErrCodeBatchNotFound    = 40405 // 库存批次不存在
	ErrCodeVariantNotFound  = 40406 // 商品规格不存在
	ErrCodeProductNotFound  = 40407 // 商品不存在
	ErrCodeCartNotFound     = 40408 // 购物车不存在
	ErrCodeCartItemNotFound = 40409 // 购物车条目不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError        = 40000 // 业务错误(通用)
	ErrCodeInsufficientStock    = 40001 // 库存不足
	ErrCodeInvalidOrderStatus   = 40002 // 订单状态非法
	ErrCodeDuplicateSKU         = 40004 // SKU已存在
	ErrCodeOverRelease          = 40006 // 释放数量超过预留数量
	ErrCodeBelowReserved        = 40007 // 调整后库存低于预留数量
	ErrCodeNegativeStock        = 40008 // 库存不能为负
	ErrCodeVariantMismatch      = 40010 // 批次不属于同一规格
	ErrCodeBatchInUse           = 40011 // 批次仍被占用
	ErrCodeEmptyCart            = 40012 // 购物车为空
	ErrCodeMissingVariant       = 40013 // 购物车条目缺少规格
	ErrCodeInvalidQuantity      = 40014 // 数量不合法
	ErrCodeInvalidShippingInfo  = 40015 // 收货信息不完整
	ErrCodeInvalidPaymentStatus = 40016 // 支付状态非法
	ErrCodeInvalidParams        = 40020 // 参数错误
	ErrCodeBindError            = 40021 // 参数绑定失败

	// 冲突错误（40900-40999）
	ErrCodeConflict         = 40900 // 冲突(通用)
	ErrCodeConcurrentUpdate = 40901 // 并发修改冲突
	ErrCodeDuplicateEntry   = 40902 // 重复记录(通用)
	ErrCodeDuplicateRequest = 40903 // 重复请求（幂等键处理中）
	ErrCodeDuplicateOrderNo = 40904 // 订单号冲突

	// 语义错误（42200-42299）
	ErrCodeIdempotencyKeyReused = 42201 // 幂等键已用于不同的请求内容
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")

	// 认证授权
	ErrUnauthorized = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired = New(ErrCodeTokenExpired, "Token已过期")
	ErrForbidden    = New(ErrCodeForbidden, "无权限访问")

	// 资源不存在
	ErrNotFound      = New(ErrCodeNotFound, "资源不存在")
	ErrOrderNotFound = New(ErrCodeOrderNotFound, "订单不存在")

	// 业务规则
	ErrInsufficientStock  = New(ErrCodeInsufficientStock, "库存不足")
	ErrInvalidOrderStatus = New(ErrCodeInvalidOrderStatus, "订单状态不允许此操作")

	// 冲突
	ErrConcurrentUpdate = New(ErrCodeConcurrentUpdate, "数据已被其他请求修改，请重试")
	ErrDuplicateRequest = New(ErrCodeDuplicateRequest, "请求正在处理中，请勿重复提交")

	// 语义错误
	ErrIdempotencyKeyReused = New(ErrCodeIdempotencyKeyReused, "幂等键已用于不同的请求内容")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// KindOfErr 返回任意错误的类别，非AppError视为内部错误
func KindOfErr(err error) Kind {
	return GetAppError(err).Kind()
}
