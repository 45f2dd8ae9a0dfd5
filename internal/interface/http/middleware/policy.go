package middleware

import (
	"github.com/xiebiao/storefront/pkg/jwt"
)

// Permission 权限点
type Permission string

const (
	PermInventoryRead  Permission = "inventory:read"
	PermInventoryWrite Permission = "inventory:write"
	PermOrderManage    Permission = "order:manage"     // 发货、签收、查看全部订单
	PermOrderCancelAny Permission = "order:cancel_any" // 取消任意用户的订单
)

// Policy 授权策略，路由在调用用例之前查询
type Policy interface {
	Allows(role string, perm Permission) bool
}

// RolePolicy 基于角色的静态授权表
type RolePolicy map[string][]Permission

// DefaultPolicy 默认角色权限
//   - admin: 全部权限
//   - staff: 库存读写、订单处理
//   - customer: 只能操作自己的购物车和订单
func DefaultPolicy() RolePolicy {
	return RolePolicy{
		jwt.RoleAdmin:    {PermInventoryRead, PermInventoryWrite, PermOrderManage, PermOrderCancelAny},
		jwt.RoleStaff:    {PermInventoryRead, PermInventoryWrite, PermOrderManage},
		jwt.RoleCustomer: nil,
	}
}

// Allows 实现Policy
func (p RolePolicy) Allows(role string, perm Permission) bool {
	for _, granted := range p[role] {
		if granted == perm {
			return true
		}
	}
	return false
}
