package sales

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/sales/dto"
)

var ErrNoItems = errors.New("sale has no items")

type UseCase interface {
	// Submit posts the sale to the backend and journals the accepted result.
	// A failed submission leaves the caller's cart intact for retry.
	Submit(ctx context.Context, input *dto.SubmitSaleInput) (*model.Sale, error)
}

// Gateway is the sale submission endpoint, consumed as a black box.
type Gateway interface {
	SubmitSale(ctx context.Context, req *dto.SubmitSaleRequest) (*model.Sale, error)
}
