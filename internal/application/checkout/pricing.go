package checkout

import (
	"github.com/xiebiao/storefront/internal/infrastructure/config"
)

// Pricing 计价策略（金额单位：分）
//
//	应税金额 = 小计 - 优惠
//	税额     = 应税金额 × 税率(万分比) / 10000，四舍五入
//	运费     = 应税金额达到包邮门槛时为0，否则为固定运费
type Pricing struct {
	TaxRateBP             int64
	ShippingFee           int64
	FreeShippingThreshold int64 // 0表示不包邮
}

// NewPricing 从配置创建计价策略
func NewPricing(cfg config.CheckoutConfig) Pricing {
	return Pricing{
		TaxRateBP:             cfg.TaxRateBP,
		ShippingFee:           cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}
}

// Quote 计价结果
type Quote struct {
	Subtotal int64
	Discount int64
	Tax      int64
	Shipping int64
	Total    int64
}

// Quote 计算订单金额，优惠金额被限制在[0, subtotal]
func (p Pricing) Quote(subtotal, discount int64) Quote {
	discount = max(0, min(discount, subtotal))
	taxable := subtotal - discount

	tax := (taxable*p.TaxRateBP + 5000) / 10000

	shipping := p.ShippingFee
	if p.FreeShippingThreshold > 0 && taxable >= p.FreeShippingThreshold {
		shipping = 0
	}

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable + tax + shipping,
	}
}
