package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/order"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// orderRepository 订单仓储实现(MySQL)
// 1. Order和OrderItem是聚合关系，必须一起保存
// 2. 查询时使用Preload预加载明细，避免N+1问题
// 3. 事务通过context传递
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepository{db: db}
}

// Create 创建订单
// GORM会自动保存关联的Items；order_no唯一索引冲突转换为ErrDuplicateOrderNo
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	model := toOrderModel(o)

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return order.ErrDuplicateOrderNo.WithDetails(map[string]interface{}{"order_no": o.OrderNo})
		}
		return apperrors.Wrap(err, "创建订单失败")
	}

	// 回填自增ID
	o.ID = model.ID
	o.CreatedAt = model.CreatedAt
	o.UpdatedAt = model.UpdatedAt
	for i := range o.Items {
		o.Items[i].ID = model.Items[i].ID
		o.Items[i].OrderID = model.ID
	}
	return nil
}

// FindByID 根据ID查找订单
// Preload("Items")会执行:
// 1. SELECT * FROM orders WHERE id = ?
// 2. SELECT * FROM order_items WHERE order_id IN (?)
func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Where("id = ?", id))
}

func (r *orderRepository) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Clauses(forUpdate).Where("id = ?", id))
}

func (r *orderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Where("order_no = ?", orderNo))
}

func (r *orderRepository) LockByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Clauses(forUpdate).Where("order_no = ?", orderNo))
}

func (r *orderRepository) first(query *gorm.DB) (*order.Order, error) {
	var model OrderModel
	if err := query.Preload("Items").First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, order.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "查询订单失败")
	}
	return toOrderEntity(&model), nil
}

// Update 更新订单头，不更新Items
func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	result := getDB(ctx, r.db).Model(&OrderModel{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"status":         int(o.Status),
		"payment_status": int(o.PaymentStatus),
		"cancel_reason":  o.CancelReason,
		"cancelled_at":   o.CancelledAt,
		"updated_at":     o.UpdatedAt,
	})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新订单失败")
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// ListByUserID 查询订单列表，userID为0时查询全部
func (r *orderRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*order.Order, int64, error) {
	query := getDB(ctx, r.db).Model(&OrderModel{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询订单总数失败")
	}

	var models []OrderModel
	err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset(offset(page, pageSize)).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询订单列表失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}
	return orders, total, nil
}

func (r *orderRepository) AddAllocations(ctx context.Context, allocations []*order.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	models := make([]OrderAllocationModel, len(allocations))
	for i, a := range allocations {
		models[i] = OrderAllocationModel{
			OrderItemID: a.OrderItemID,
			BatchID:     a.BatchID,
			VariantID:   a.VariantID,
			Quantity:    a.Quantity,
		}
	}
	if err := getDB(ctx, r.db).Create(&models).Error; err != nil {
		return apperrors.Wrap(err, "保存库存分配记录失败")
	}
	for i := range allocations {
		allocations[i].ID = models[i].ID
	}
	return nil
}

// FindAllocations 通过order_items关联查询
func (r *orderRepository) FindAllocations(ctx context.Context, orderID uint) (map[uint][]*order.Allocation, error) {
	var models []OrderAllocationModel
	err := getDB(ctx, r.db).
		Joins("JOIN order_items ON order_items.id = order_allocations.order_item_id").
		Where("order_items.order_id = ?", orderID).
		Order("order_allocations.id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询库存分配记录失败")
	}

	out := make(map[uint][]*order.Allocation)
	for _, m := range models {
		out[m.OrderItemID] = append(out[m.OrderItemID], &order.Allocation{
			ID:          m.ID,
			OrderItemID: m.OrderItemID,
			BatchID:     m.BatchID,
			VariantID:   m.VariantID,
			Quantity:    m.Quantity,
		})
	}
	return out, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

// toOrderModel 领域实体 → GORM模型
func toOrderModel(o *order.Order) *OrderModel {
	items := make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemModel{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			SKU:         item.SKU,
			Attributes:  item.Attributes,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		}
	}

	return &OrderModel{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		UserID:         o.UserID,
		Status:         int(o.Status),
		PaymentStatus:  int(o.PaymentStatus),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		TaxAmount:      o.TaxAmount,
		ShippingAmount: o.ShippingAmount,
		Total:          o.Total,
		Recipient:      o.Shipping.Recipient,
		Phone:          o.Shipping.Phone,
		Address:        o.Shipping.Address,
		City:           o.Shipping.City,
		PostalCode:     o.Shipping.PostalCode,
		Country:        o.Shipping.Country,
		Note:           o.Note,
		CancelReason:   o.CancelReason,
		CancelledAt:    o.CancelledAt,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// toOrderEntity GORM模型 → 领域实体
func toOrderEntity(m *OrderModel) *order.Order {
	items := make([]*order.OrderItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = &order.OrderItem{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			SKU:         item.SKU,
			Attributes:  item.Attributes,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		}
	}

	return &order.Order{
		ID:             m.ID,
		OrderNo:        m.OrderNo,
		UserID:         m.UserID,
		Status:         order.OrderStatus(m.Status),
		PaymentStatus:  order.PaymentStatus(m.PaymentStatus),
		Subtotal:       m.Subtotal,
		DiscountAmount: m.DiscountAmount,
		TaxAmount:      m.TaxAmount,
		ShippingAmount: m.ShippingAmount,
		Total:          m.Total,
		Shipping: order.ShippingInfo{
			Recipient:  m.Recipient,
			Phone:      m.Phone,
			Address:    m.Address,
			City:       m.City,
			PostalCode: m.PostalCode,
			Country:    m.Country,
		},
		Note:         m.Note,
		CancelReason: m.CancelReason,
		CancelledAt:  m.CancelledAt,
		Items:        items,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
