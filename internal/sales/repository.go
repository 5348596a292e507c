package sales

import (
	"context"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

// Repository is the local sale journal: accepted sales only, minimal surface.
type Repository interface {
	Create(ctx context.Context, sale *model.Sale) error
	ListRecent(ctx context.Context, limit int) ([]model.Sale, error)
}
