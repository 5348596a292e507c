package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/sales"
	"github.com/fekuna/omnipos-checkout-service/internal/sales/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

type salesUseCase struct {
	gateway sales.Gateway
	repo    sales.Repository // optional, nil skips journaling
	logger  logger.ZapLogger
}

func NewSalesUseCase(gateway sales.Gateway, repo sales.Repository, log logger.ZapLogger) sales.UseCase {
	return &salesUseCase{
		gateway: gateway,
		repo:    repo,
		logger:  log,
	}
}

func (uc *salesUseCase) Submit(ctx context.Context, input *dto.SubmitSaleInput) (*model.Sale, error) {
	if len(input.Items) == 0 {
		return nil, sales.ErrNoItems
	}

	req := buildRequest(input)
	sale, err := uc.gateway.SubmitSale(ctx, req)
	if err != nil {
		return nil, err
	}

	sale.SaleType = req.SaleType
	sale.PaymentMethod = req.PaymentMethod
	sale.CardSubType = req.CardSubType
	sale.InstallmentCount = req.InstallmentCount
	sale.SurchargePct = req.SurchargePct
	sale.Total = req.Total
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}
	sale.Items = make([]model.SaleItem, 0, len(req.Items))
	for _, it := range req.Items {
		sale.Items = append(sale.Items, model.SaleItem{
			ID:        uuid.New().String(),
			SaleID:    sale.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Size:      it.Size,
		})
	}

	uc.logger.Info("sale submitted",
		zap.String("sale_id", sale.ID),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.String("total", sale.Total.String()),
	)

	if uc.repo != nil {
		if err := uc.repo.Create(ctx, sale); err != nil {
			// The backend already accepted the sale; a journal failure must
			// not fail the checkout.
			uc.logger.Error("failed to journal sale", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}

	return sale, nil
}

func buildRequest(input *dto.SubmitSaleInput) *dto.SubmitSaleRequest {
	req := &dto.SubmitSaleRequest{
		SaleType:      input.SaleType,
		PaymentMethod: input.Selection.Method,
		SurchargePct:  input.Totals.SurchargePercent,
		Total:         input.Totals.Total,
	}
	if input.Selection.Method == model.PaymentCard {
		sub := input.Selection.CardSubType
		installments := input.Selection.Installments
		req.CardSubType = &sub
		req.InstallmentCount = &installments
	}
	req.Items = make([]dto.SaleItemRequest, 0, len(input.Items))
	for i := range input.Items {
		l := &input.Items[i]
		req.Items = append(req.Items, dto.SaleItemRequest{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Size:      l.Size,
		})
	}
	return req
}
