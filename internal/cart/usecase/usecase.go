package usecase

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/internal/cart"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

type cartUseCase struct {
	mu     sync.Mutex
	lines  []*model.CartLine
	logger logger.ZapLogger
}

func NewCartUseCase(log logger.ZapLogger) cart.UseCase {
	return &cartUseCase{logger: log}
}

func (uc *cartUseCase) AddItem(product *model.Product, size *string, quantity int, sizeStock map[string]int) error {
	if quantity <= 0 {
		quantity = 1
	}

	limit := stockLimit(product.Stock, size, sizeStock)
	if limit <= 0 {
		return cart.ErrOutOfStock
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, l := range uc.lines {
		if !l.Matches(product.ID, size) {
			continue
		}
		merged := l.Quantity + quantity
		if merged > limit {
			return cart.ErrInsufficientStock
		}
		l.Quantity = merged
		// Merge adopts the live product price, discarding the original snapshot.
		l.UnitPrice = product.Price
		l.Stock = limit
		return nil
	}

	if quantity > limit {
		return cart.ErrInsufficientStock
	}

	uc.lines = append(uc.lines, &model.CartLine{
		ID:        uuid.New().String(),
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Size:      size,
		Stock:     limit,
	})
	return nil
}

func (uc *cartUseCase) UpdateQuantity(lineID string, quantity int, sizeStock map[string]int) error {
	if quantity <= 0 {
		return uc.RemoveItem(lineID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	for _, l := range uc.lines {
		if l.ID != lineID {
			continue
		}
		limit := stockLimit(l.Stock, l.Size, sizeStock)
		if quantity > limit {
			return cart.ErrInsufficientStock
		}
		l.Quantity = quantity
		return nil
	}
	return cart.ErrLineNotFound
}

func (uc *cartUseCase) RemoveItem(lineID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for i, l := range uc.lines {
		if l.ID == lineID {
			uc.lines = append(uc.lines[:i], uc.lines[i+1:]...)
			return nil
		}
	}
	return cart.ErrLineNotFound
}

func (uc *cartUseCase) Clear() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.lines = nil
}

func (uc *cartUseCase) Lines() []model.CartLine {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]model.CartLine, 0, len(uc.lines))
	for _, l := range uc.lines {
		out = append(out, *l)
	}
	return out
}

func (uc *cartUseCase) Subtotal() decimal.Decimal {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	subtotal := decimal.Zero
	for _, l := range uc.lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	return subtotal
}

func (uc *cartUseCase) ApplyStockChange(productID string, newStock int) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	kept := uc.lines[:0]
	for _, l := range uc.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
			continue
		}
		if newStock <= 0 {
			uc.logger.Warn("removing cart line, product out of stock",
				zap.String("line_id", l.ID),
				zap.String("product_id", productID),
			)
			continue
		}
		l.Stock = newStock
		if l.Quantity > newStock {
			uc.logger.Warn("clamping cart line quantity to new stock",
				zap.String("line_id", l.ID),
				zap.String("product_id", productID),
				zap.Int("quantity", l.Quantity),
				zap.Int("new_stock", newStock),
			)
			l.Quantity = newStock
		}
		kept = append(kept, l)
	}
	uc.lines = kept
}

// stockLimit resolves the applicable stock ceiling: size-specific stock when
// the line has a size and the table knows it, general stock otherwise.
func stockLimit(general int, size *string, sizeStock map[string]int) int {
	if size != nil && sizeStock != nil {
		if s, ok := sizeStock[*size]; ok {
			return s
		}
	}
	return general
}
