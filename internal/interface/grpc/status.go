package grpc

import (
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

const errorDomain = "storefront"

// preconditionCodes 校验类错误中属于"前置条件不满足"的错误码
var preconditionCodes = map[int]bool{
	apperrors.ErrCodeInsufficientStock:  true,
	apperrors.ErrCodeOverRelease:        true,
	apperrors.ErrCodeBelowReserved:      true,
	apperrors.ErrCodeNegativeStock:      true,
	apperrors.ErrCodeBatchInUse:         true,
	apperrors.ErrCodeInvalidOrderStatus: true,
}

// CodeOf 错误类别对应的gRPC状态码
func CodeOf(appErr *apperrors.AppError) codes.Code {
	switch appErr.Kind() {
	case apperrors.KindValidation:
		if preconditionCodes[appErr.Code] {
			return codes.FailedPrecondition
		}
		return codes.InvalidArgument
	case apperrors.KindUnauthorized:
		return codes.Unauthenticated
	case apperrors.KindForbidden:
		return codes.PermissionDenied
	case apperrors.KindNotFound:
		return codes.NotFound
	case apperrors.KindConflict:
		return codes.Aborted
	case apperrors.KindUnprocessable:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// ToStatus 把错误转换为gRPC状态
// 业务错误码和details放在ErrorInfo里：Reason为错误码，Metadata为details
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}

	appErr := apperrors.GetAppError(err)
	st := status.New(CodeOf(appErr), appErr.Message)

	info := &errdetails.ErrorInfo{
		Reason:   strconv.Itoa(appErr.Code),
		Domain:   errorDomain,
		Metadata: make(map[string]string, len(appErr.Details)),
	}
	for k, v := range appErr.Details {
		info.Metadata[k] = fmt.Sprint(v)
	}

	if withInfo, err := st.WithDetails(info); err == nil {
		return withInfo
	}
	return st
}

// FromStatus 从gRPC错误中还原业务错误码，没有ErrorInfo时返回0
func FromStatus(err error) (code int, metadata map[string]string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code, nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return 0, nil
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			code, _ := strconv.Atoi(info.Reason)
			return code, info.Metadata
		}
	}
	return 0, nil
}
