package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, sale *model.Sale) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	saleQuery := `
        INSERT INTO sales (
            id, sale_type, payment_method, card_sub_type, installment_count,
            surcharge_percentage, total, created_at
        )
        VALUES (
            :id, :sale_type, :payment_method, :card_sub_type, :installment_count,
            :surcharge_percentage, :total, :created_at
        )
    `
	if _, err = tx.NamedExecContext(ctx, saleQuery, sale); err != nil {
		return err
	}

	itemQuery := `
        INSERT INTO sale_items (
            id, sale_id, product_id, quantity, unit_price, size
        )
        VALUES (
            :id, :sale_id, :product_id, :quantity, :unit_price, :size
        )
    `
	for i := range sale.Items {
		if _, err = tx.NamedExecContext(ctx, itemQuery, &sale.Items[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]model.Sale, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []model.Sale
	query := `SELECT * FROM sales ORDER BY created_at DESC LIMIT $1`
	if err := r.DB.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, err
	}

	for i := range items {
		var lines []model.SaleItem
		err := r.DB.SelectContext(ctx, &lines,
			`SELECT * FROM sale_items WHERE sale_id = $1`, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Items = lines
	}
	return items, nil
}
