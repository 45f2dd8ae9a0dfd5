package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// pathID 解析路径中的正整数ID
func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.ErrInvalidParams.WithDetails(map[string]interface{}{
			name: raw,
		})
	}
	return uint(id), nil
}

// bindError 参数绑定失败统一返回40021
func bindError(err error) error {
	return apperrors.ErrBindError.WithMessage("参数格式错误: %s", err.Error())
}
