package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/storefront/internal/application/checkout"
	apporder "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/pkg/response"
)

// OrderHandler 订单HTTP处理器
type OrderHandler struct {
	checkout *checkout.UseCase
	cancel   *apporder.CancelOrderUseCase
	manage   *apporder.ManageOrderUseCase
	auth     *middleware.AuthMiddleware
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(
	checkoutUseCase *checkout.UseCase,
	cancelUseCase *apporder.CancelOrderUseCase,
	manageUseCase *apporder.ManageOrderUseCase,
	auth *middleware.AuthMiddleware,
) *OrderHandler {
	return &OrderHandler{
		checkout: checkoutUseCase,
		cancel:   cancelUseCase,
		manage:   manageUseCase,
		auth:     auth,
	}
}

// Checkout 购物车结算下单
// @Summary      购物车结算下单
// @Description  锁定库存批次后按FIFO扣减，整个过程在一个事务内完成；支持Idempotency-Key
// @Tags         订单
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "幂等键"
// @Param        request body dto.CheckoutRequest true "收货信息"
// @Success      201 {object} response.Response{data=dto.OrderResponse} "下单成功"
// @Failure      400 {object} response.Response "购物车为空、缺少规格或库存不足"
// @Failure      404 {object} response.Response "规格不存在或已下架"
// @Failure      409 {object} response.Response "并发修改或重复请求"
// @Router       /api/v1/orders/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	o, err := h.checkout.Execute(c.Request.Context(), checkout.Request{
		UserID:   middleware.GetUserID(c),
		Shipping: req.Shipping.ToDomain(),
		Note:     req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOrderResponse(o))
}

// ListOrders 订单列表
// @Summary      订单列表
// @Description  默认只返回自己的订单；all=true需要order:manage权限
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Param        all query bool false "全部用户"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.OrderResponse}}
// @Router       /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.Normalize()

	userID := middleware.GetUserID(c)
	if req.All && h.auth.Can(c, middleware.PermOrderManage) {
		userID = 0
	}

	orders, total, err := h.manage.List(c.Request.Context(), userID, req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, dto.NewOrderList(orders), total, req.Page, req.PageSize)
}

// GetOrder 订单详情
// @Summary      订单详情
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      404 {object} response.Response "订单不存在"
// @Router       /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.manage.Get(c.Request.Context(), id, h.ownerScope(c, middleware.PermOrderManage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewOrderResponse(o))
}

// CancelOrder 取消订单
// @Summary      取消订单
// @Description  只有待处理、处理中的订单可以取消；按下单时的批次分配精确回补库存
// @Tags         订单
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Param        request body dto.CancelOrderRequest false "取消原因"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      400 {object} response.Response "订单状态不允许取消"
// @Failure      404 {object} response.Response "订单不存在"
// @Router       /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CancelOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
	}

	o, err := h.cancel.Execute(c.Request.Context(), apporder.CancelRequest{
		OrderID: id,
		ActorID: middleware.GetUserID(c),
		OwnerID: h.ownerScope(c, middleware.PermOrderCancelAny),
		Reason:  req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewOrderResponse(o))
}

// ShipOrder 发货
// @Summary      发货
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      400 {object} response.Response "订单状态不允许发货"
// @Router       /api/v1/orders/{id}/ship [post]
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.manage.Ship(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewOrderResponse(o))
}

// DeliverOrder 签收
// @Summary      签收
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "订单ID"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      400 {object} response.Response "订单状态不允许签收"
// @Router       /api/v1/orders/{id}/deliver [post]
func (h *OrderHandler) DeliverOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.manage.Deliver(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewOrderResponse(o))
}

// ownerScope 拥有perm时不限制订单归属，否则只能操作自己的订单
func (h *OrderHandler) ownerScope(c *gin.Context, perm middleware.Permission) uint {
	if h.auth.Can(c, perm) {
		return 0
	}
	return middleware.GetUserID(c)
}
