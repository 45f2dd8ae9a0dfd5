package mysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/storefront/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 1. GORM v2 + MySQL驱动，TranslateError把唯一索引冲突转换为gorm.ErrDuplicatedKey
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. debug模式打印SQL
// 4. auto_migrate=true时自动迁移表结构
func NewDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}
	log.Info("数据库连接成功", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	// 生产环境应使用版本化的迁移脚本
	if cfg.Database.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	return db, nil
}

// AutoMigrate 自动迁移表结构
// AutoMigrate只会创建表、添加字段，不会删除或修改现有字段
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ProductModel{},
		&ProductVariantModel{},
		&InventoryBatchModel{},
		&CartModel{},
		&CartItemModel{},
		&OrderModel{},
		&OrderItemModel{},
		&OrderAllocationModel{},
		&AuditLogModel{},
		&OutboxEventModel{},
	)
}

// =========================================
// GORM模型（infrastructure层数据模型，domain实体不依赖GORM）
// =========================================

// ProductModel 商品
type ProductModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null;comment:商品名称"`
	SKU       string `gorm:"uniqueIndex;size:64;not null;comment:商品SKU"`
	Price     int64  `gorm:"not null;comment:价格(分)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

// ProductVariantModel 商品规格
type ProductVariantModel struct {
	ID         uint              `gorm:"primaryKey"`
	ProductID  uint              `gorm:"index;not null;comment:商品ID"`
	SKU        string            `gorm:"uniqueIndex;size:64;not null;comment:规格SKU"`
	Name       string            `gorm:"size:200;not null;comment:规格名称"`
	Attributes map[string]string `gorm:"serializer:json;type:json;comment:规格属性"`
	Price      int64             `gorm:"not null;comment:价格(分)"`
	IsActive   bool              `gorm:"index;default:true;comment:是否上架"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// InventoryBatchModel 库存批次
// 1. SKU可空，非空时唯一（MySQL唯一索引允许多个NULL）
// 2. (variant_id, created_at)复合索引支撑FIFO加锁查询
// 3. Version乐观锁版本号
type InventoryBatchModel struct {
	ID                uint       `gorm:"primaryKey"`
	VariantID         uint       `gorm:"index:idx_variant_created,priority:1;not null;comment:规格ID"`
	SKU               *string    `gorm:"uniqueIndex;size:64;comment:批次SKU"`
	BatchNumber       string     `gorm:"size:64;comment:批号"`
	Location          string     `gorm:"index;size:64;comment:库位"`
	StockQuantity     int        `gorm:"not null;default:0;comment:实物库存"`
	ReservedQuantity  int        `gorm:"not null;default:0;comment:已预留"`
	LowStockThreshold int        `gorm:"not null;default:0;comment:低库存阈值"`
	ReorderLevel      int        `gorm:"not null;default:0;comment:补货点"`
	ExpiryDate        *time.Time `gorm:"index;comment:过期时间"`
	Version           int        `gorm:"not null;default:1;comment:乐观锁版本号"`
	CreatedAt         time.Time  `gorm:"index:idx_variant_created,priority:2"`
	UpdatedAt         time.Time
}

func (InventoryBatchModel) TableName() string {
	return "inventory_batches"
}

// CartModel 购物车（每个用户一行）
type CartModel struct {
	ID             uint            `gorm:"primaryKey"`
	UserID         uint            `gorm:"uniqueIndex;not null;comment:用户ID"`
	DiscountAmount int64           `gorm:"not null;default:0;comment:优惠金额(分)"`
	Items          []CartItemModel `gorm:"foreignKey:CartID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CartModel) TableName() string {
	return "carts"
}

// CartItemModel 购物车条目，VariantID为NULL表示未选规格
type CartItemModel struct {
	ID        uint  `gorm:"primaryKey"`
	CartID    uint  `gorm:"index;not null"`
	ProductID uint  `gorm:"not null"`
	VariantID *uint `gorm:"comment:规格ID"`
	Quantity  int   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CartItemModel) TableName() string {
	return "cart_items"
}

// OrderModel 订单
// Status/PaymentStatus使用tinyint存储
type OrderModel struct {
	ID             uint             `gorm:"primaryKey"`
	OrderNo        string           `gorm:"uniqueIndex;size:32;not null;comment:订单号"`
	UserID         uint             `gorm:"index;not null;comment:买家用户ID"`
	Status         int              `gorm:"index;type:tinyint;default:1;comment:订单状态(1待处理2处理中3已发货4已送达5已取消)"`
	PaymentStatus  int              `gorm:"type:tinyint;default:1;comment:支付状态(1待支付2已支付3失败4已退款)"`
	Subtotal       int64            `gorm:"not null;comment:商品金额(分)"`
	DiscountAmount int64            `gorm:"not null;default:0"`
	TaxAmount      int64            `gorm:"not null;default:0"`
	ShippingAmount int64            `gorm:"not null;default:0"`
	Total          int64            `gorm:"not null;comment:应付总额(分)"`
	Recipient      string           `gorm:"size:100"`
	Phone          string           `gorm:"size:32"`
	Address        string           `gorm:"size:255"`
	City           string           `gorm:"size:100"`
	PostalCode     string           `gorm:"size:20"`
	Country        string           `gorm:"size:64"`
	Note           string           `gorm:"size:500"`
	CancelReason   string           `gorm:"size:255"`
	CancelledAt    *time.Time       `gorm:"comment:取消时间"`
	Items          []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time        `gorm:"index"`
	UpdatedAt      time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 订单明细（下单时快照）
type OrderItemModel struct {
	ID          uint              `gorm:"primaryKey"`
	OrderID     uint              `gorm:"index;not null"`
	ProductID   uint              `gorm:"not null"`
	VariantID   uint              `gorm:"index;not null"`
	ProductName string            `gorm:"size:200"`
	VariantName string            `gorm:"size:200"`
	SKU         string            `gorm:"size:64"`
	Attributes  map[string]string `gorm:"serializer:json;type:json"`
	Quantity    int               `gorm:"not null"`
	UnitPrice   int64             `gorm:"not null;comment:下单时单价(分)"`
	TotalPrice  int64             `gorm:"not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderAllocationModel 订单明细在批次上的扣减记录
type OrderAllocationModel struct {
	ID          uint `gorm:"primaryKey"`
	OrderItemID uint `gorm:"index;not null"`
	BatchID     uint `gorm:"index;not null"`
	VariantID   uint `gorm:"not null"`
	Quantity    int  `gorm:"not null"`
	CreatedAt   time.Time
}

func (OrderAllocationModel) TableName() string {
	return "order_allocations"
}

// AuditLogModel 审计日志（只追加）
type AuditLogModel struct {
	ID         uint                   `gorm:"primaryKey"`
	EntityType string                 `gorm:"index:idx_entity,priority:1;size:32;not null"`
	EntityID   uint                   `gorm:"index:idx_entity,priority:2;not null"`
	Action     string                 `gorm:"size:32;not null"`
	OldValues  map[string]interface{} `gorm:"serializer:json;type:json"`
	NewValues  map[string]interface{} `gorm:"serializer:json;type:json"`
	ActorID    uint                   `gorm:"index"`
	CreatedAt  time.Time              `gorm:"index"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// OutboxEventModel 发件箱
// (status, locked_until)索引支撑中继的SKIP LOCKED领取
type OutboxEventModel struct {
	ID            uint              `gorm:"primaryKey"`
	EventID       string            `gorm:"uniqueIndex;size:36;not null"`
	AggregateType string            `gorm:"size:32;not null"`
	AggregateID   string            `gorm:"size:64;not null"`
	EventType     string            `gorm:"size:64;not null"`
	Payload       string            `gorm:"type:json;not null"`
	Headers       map[string]string `gorm:"serializer:json;type:json"`
	Traceparent   string            `gorm:"size:64"`
	Status        string            `gorm:"index:idx_outbox_claim,priority:1;size:16;not null"`
	RetryCount    int               `gorm:"not null;default:0"`
	LastError     string            `gorm:"type:text"`
	LockedBy      string            `gorm:"size:64"`
	LockedUntil   *time.Time        `gorm:"index:idx_outbox_claim,priority:2"`
	CreatedAt     time.Time
}

func (OutboxEventModel) TableName() string {
	return "outbox_events"
}
