package inventory

import (
	"sort"
)

// 库存分配规则（纯函数，不做I/O）
//
// 只修改调用方传入的批次对象；持久化、加锁、审计由Service负责。
// 每个操作先校验再修改，校验失败时传入的对象保持原样。
// 任何操作的结果库存都不超过MaxQuantity。

// MaxQuantity 单个批次库存上限，也是单次操作数量上限
const MaxQuantity = 1_000_000_000

// exceedsMax stock + qty 是否超过上限；stock >= 0，qty > 0
func exceedsMax(stock, qty int) bool {
	return qty > MaxQuantity-stock
}

func tooLarge(b *Batch, qty int) error {
	return ErrInvalidQuantity.
		WithMessage("批次库存不能超过%d", MaxQuantity).
		WithDetails(map[string]interface{}{
			"batch_id": b.ID,
			"stock":    b.StockQuantity,
			"quantity": qty,
		})
}

// TotalAvailable 批次可用库存合计
func TotalAvailable(batches []*Batch) int {
	total := 0
	for _, b := range batches {
		if a := b.Available(); a > 0 {
			total += a
		}
	}
	return total
}

// ValidateTotalAvailable 校验规格总可用库存是否满足qty
// 只统计属于variantID的批次；qty <= 0 返回ErrInvalidQuantity，不视为"需要0件即满足"
func ValidateTotalAvailable(variantID uint, batches []*Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	available := TotalAvailable(ofVariant(variantID, batches))
	if available < qty {
		return insufficient(variantID, qty, available)
	}
	return nil
}

// ConsumeFIFO 按批次创建时间从旧到新扣减qty件实物库存
//
// 每个批次最多扣减其可用数量（不会吃掉已预留部分）。
// 总量不足时直接返回ErrInsufficientStock，不修改任何批次。
// 示例：批次按创建顺序为[2,5,3]，扣减6 → 各批次扣减[2,4,0]，剩余[0,1,3]
func ConsumeFIFO(variantID uint, batches []*Batch, qty int) ([]Consumption, error) {
	if err := ValidateTotalAvailable(variantID, batches, qty); err != nil {
		return nil, err
	}

	ordered := SortFIFO(ofVariant(variantID, batches))

	remaining := qty
	consumptions := make([]Consumption, 0, len(ordered))
	for _, b := range ordered {
		if remaining == 0 {
			break
		}
		take := min(b.Available(), remaining)
		if take <= 0 {
			continue
		}
		b.StockQuantity -= take
		remaining -= take
		consumptions = append(consumptions, Consumption{BatchID: b.ID, Quantity: take})
	}

	return consumptions, nil
}

// Reserve 预留：reserved += qty
func Reserve(b *Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if b.Available() < qty {
		return insufficient(b.VariantID, qty, b.Available())
	}
	b.ReservedQuantity += qty
	return nil
}

// Release 释放预留：reserved -= qty
func Release(b *Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > b.ReservedQuantity {
		return overRelease(b, qty)
	}
	b.ReservedQuantity -= qty
	return nil
}

// Fulfill 履约：预留转为实际出库，reserved与stock同时减qty
func Fulfill(b *Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > b.ReservedQuantity {
		return overRelease(b, qty)
	}
	b.ReservedQuantity -= qty
	b.StockQuantity -= qty
	return nil
}

// Adjust 盘点调整：stock += delta
// 结果不能为负，也不能低于已预留数量
func Adjust(b *Batch, delta int) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	if delta > 0 && exceedsMax(b.StockQuantity, delta) {
		return tooLarge(b, delta)
	}
	next := b.StockQuantity + delta
	if next < 0 {
		return ErrNegativeStock.WithDetails(map[string]interface{}{
			"batch_id": b.ID,
			"stock":    b.StockQuantity,
			"delta":    delta,
		})
	}
	if next < b.ReservedQuantity {
		return ErrBelowReserved.WithDetails(map[string]interface{}{
			"batch_id": b.ID,
			"reserved": b.ReservedQuantity,
			"result":   next,
		})
	}
	b.StockQuantity = next
	return nil
}

// Transfer 调拨：from.stock -= qty, to.stock += qty
func Transfer(from, to *Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if from.ID == to.ID {
		return ErrVariantMismatch.WithMessage("调出和调入不能是同一批次")
	}
	if from.VariantID != to.VariantID {
		return ErrVariantMismatch.WithDetails(map[string]interface{}{
			"from_variant_id": from.VariantID,
			"to_variant_id":   to.VariantID,
		})
	}
	if from.Available() < qty {
		return insufficient(from.VariantID, qty, from.Available())
	}
	if exceedsMax(to.StockQuantity, qty) {
		return tooLarge(to, qty)
	}
	from.StockQuantity -= qty
	to.StockQuantity += qty
	return nil
}

// Restock 回补实物库存（取消订单时使用）
func Restock(b *Batch, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if exceedsMax(b.StockQuantity, qty) {
		return tooLarge(b, qty)
	}
	b.StockQuantity += qty
	return nil
}

// SortFIFO 返回按创建时间升序（同时间按ID升序）排列的新切片
func SortFIFO(batches []*Batch) []*Batch {
	ordered := make([]*Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func ofVariant(variantID uint, batches []*Batch) []*Batch {
	out := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.VariantID == variantID {
			out = append(out, b)
		}
	}
	return out
}

func overRelease(b *Batch, qty int) error {
	return ErrOverRelease.WithDetails(map[string]interface{}{
		"batch_id":  b.ID,
		"requested": qty,
		"reserved":  b.ReservedQuantity,
	})
}
