package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/pkg/response"
)

// InventoryHandler 库存管理HTTP处理器
// 所有接口需要inventory:read或inventory:write权限，由路由挂载
type InventoryHandler struct {
	stock *appinventory.StockUseCase
	now   func() time.Time
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(stock *appinventory.StockUseCase) *InventoryHandler {
	return &InventoryHandler{stock: stock, now: time.Now}
}

// CreateBatch 新建库存批次
// @Summary      新建库存批次
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateBatchRequest true "批次信息"
// @Success      201 {object} response.Response{data=dto.BatchResponse}
// @Failure      400 {object} response.Response "数量非法"
// @Failure      404 {object} response.Response "规格不存在"
// @Failure      409 {object} response.Response "SKU已存在"
// @Router       /api/v1/inventory/batches [post]
func (h *InventoryHandler) CreateBatch(c *gin.Context) {
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	b, err := h.stock.CreateBatch(c.Request.Context(), middleware.GetUserID(c), req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewBatchResponse(b, h.now()))
}

// ListBatches 批次列表
// @Summary      批次列表
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        variant_id query int false "规格ID"
// @Param        low_stock query bool false "仅低库存"
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.BatchResponse}}
// @Router       /api/v1/inventory/batches [get]
func (h *InventoryHandler) ListBatches(c *gin.Context) {
	var req dto.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	now := h.now()
	filter := req.ToFilter(now)
	filter.Normalize()

	batches, total, err := h.stock.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, dto.NewBatchList(batches, now), total, filter.Page, filter.PageSize)
}

// GetBatch 批次详情
// @Summary      批次详情
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      404 {object} response.Response "批次不存在"
// @Router       /api/v1/inventory/batches/{id} [get]
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.stock.GetBatch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBatchResponse(b, h.now()))
}

// UpdateBatch 更新批次元数据
// @Summary      更新批次元数据
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Param        request body dto.UpdateBatchRequest true "更新字段"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      409 {object} response.Response "并发修改"
// @Router       /api/v1/inventory/batches/{id} [put]
func (h *InventoryHandler) UpdateBatch(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	b, err := h.stock.UpdateBatch(c.Request.Context(), middleware.GetUserID(c), id, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBatchResponse(b, h.now()))
}

// DeleteBatch 删除批次
// @Summary      删除批次
// @Description  有预留或被订单引用的批次不能删除
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Success      200 {object} response.Response
// @Failure      400 {object} response.Response "批次仍被占用"
// @Router       /api/v1/inventory/batches/{id} [delete]
func (h *InventoryHandler) DeleteBatch(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.stock.DeleteBatch(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Reserve 预留库存
// @Summary      预留库存
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Param        request body dto.QuantityRequest true "数量"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      400 {object} response.Response "可用库存不足"
// @Router       /api/v1/inventory/batches/{id}/reserve [post]
func (h *InventoryHandler) Reserve(c *gin.Context) {
	h.quantityOp(c, h.stock.Reserve)
}

// Release 释放预留
// @Summary      释放预留
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Param        request body dto.QuantityRequest true "数量"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      400 {object} response.Response "释放数量超过预留"
// @Router       /api/v1/inventory/batches/{id}/release [post]
func (h *InventoryHandler) Release(c *gin.Context) {
	h.quantityOp(c, h.stock.Release)
}

// Fulfill 预留出库
// @Summary      预留出库
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Param        request body dto.QuantityRequest true "数量"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Router       /api/v1/inventory/batches/{id}/fulfill [post]
func (h *InventoryHandler) Fulfill(c *gin.Context) {
	h.quantityOp(c, h.stock.Fulfill)
}

type quantityFunc func(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error)

func (h *InventoryHandler) quantityOp(c *gin.Context, op quantityFunc) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	b, err := op(c.Request.Context(), middleware.GetUserID(c), id, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBatchResponse(b, h.now()))
}

// Adjust 库存调整
// @Summary      库存调整
// @Description  delta为正表示盘盈，为负表示盘亏；调整后不能低于预留数量
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "批次ID"
// @Param        request body dto.AdjustRequest true "调整量"
// @Success      200 {object} response.Response{data=dto.BatchResponse}
// @Failure      400 {object} response.Response "调整后低于预留数量"
// @Router       /api/v1/inventory/batches/{id}/adjust [post]
func (h *InventoryHandler) Adjust(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	b, err := h.stock.Adjust(c.Request.Context(), middleware.GetUserID(c), id, req.Delta, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewBatchResponse(b, h.now()))
}

// Transfer 批次间调拨
// @Summary      批次间调拨
// @Tags         库存
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.TransferRequest true "调拨信息"
// @Success      200 {object} response.Response{data=dto.TransferResponse}
// @Failure      400 {object} response.Response "批次不属于同一规格"
// @Router       /api/v1/inventory/transfers [post]
func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	res, err := h.stock.Transfer(c.Request.Context(), middleware.GetUserID(c), req.FromBatchID, req.ToBatchID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	now := h.now()
	response.Success(c, dto.TransferResponse{
		From: dto.NewBatchResponse(res.From, now),
		To:   dto.NewBatchResponse(res.To, now),
	})
}

// Stats 库存统计
// @Summary      库存统计
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=inventory.Stats}
// @Router       /api/v1/inventory/stats [get]
func (h *InventoryHandler) Stats(c *gin.Context) {
	stats, err := h.stock.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// LowStock 低库存批次
// @Summary      低库存批次
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.BatchResponse}}
// @Router       /api/v1/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	h.pagedReport(c, h.stock.LowStock)
}

// NeedsReorder 需要补货的批次
// @Summary      需要补货的批次
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.BatchResponse}}
// @Router       /api/v1/inventory/reorder [get]
func (h *InventoryHandler) NeedsReorder(c *gin.Context) {
	h.pagedReport(c, h.stock.NeedsReorder)
}

// Expired 已过期批次
// @Summary      已过期批次
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.BatchResponse}}
// @Router       /api/v1/inventory/expired [get]
func (h *InventoryHandler) Expired(c *gin.Context) {
	h.pagedReport(c, h.stock.Expired)
}

type reportFunc func(ctx context.Context, page, pageSize int) ([]*inventory.Batch, int64, error)

func (h *InventoryHandler) pagedReport(c *gin.Context, report reportFunc) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	q.Normalize()

	batches, total, err := report(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, dto.NewBatchList(batches, h.now()), total, q.Page, q.PageSize)
}

// GetVariantStock 规格库存汇总
// @Summary      规格库存汇总
// @Tags         库存
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "规格ID"
// @Success      200 {object} response.Response{data=dto.VariantStockResponse}
// @Router       /api/v1/inventory/variants/{id}/stock [get]
func (h *InventoryHandler) GetVariantStock(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	vs, err := h.stock.GetVariantStock(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewVariantStockResponse(vs, h.now()))
}
