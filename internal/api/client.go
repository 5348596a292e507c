// Package api is the HTTP client for the POS backend: product lookup,
// size-specific stock, payment rate configuration and sale submission.
// Every failure comes back as a typed error; callers degrade instead of
// crashing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/config"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/sales/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

type Client struct {
	baseURL  string
	token    string
	branchID string
	http     *http.Client
	logger   logger.ZapLogger
}

func NewClient(cfg *config.APIConfig, branchID string, log logger.ZapLogger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		branchID: branchID,
		http:     &http.Client{Timeout: timeout},
		logger:   log,
	}
}

func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := c.get(ctx, "/products/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) LookupByBarcode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	path := "/products/barcode/" + url.PathEscape(code)
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetSizeStock(ctx context.Context, productID string) (map[string]int, error) {
	var stock map[string]int
	path := "/products/" + url.PathEscape(productID) + "/size-stock"
	if err := c.get(ctx, path, &stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// ListRateConfigs fetches the standard and operator-override rate config
// sets. Merging (override wins per sub-type/installment key) is the caller's
// job via pricing.MergeRateConfigs.
func (c *Client) ListRateConfigs(ctx context.Context) (standard, overrides []model.PaymentRateConfig, err error) {
	var payload struct {
		Standard  []model.PaymentRateConfig `json:"standard"`
		Overrides []model.PaymentRateConfig `json:"overrides"`
	}
	if err := c.get(ctx, "/payment-rates", &payload); err != nil {
		return nil, nil, err
	}
	return payload.Standard, payload.Overrides, nil
}

// SubmitSale posts the finalized sale. Non-2xx responses become errors and
// the caller keeps its cart for retry.
func (c *Client) SubmitSale(ctx context.Context, req *dto.SubmitSaleRequest) (*model.Sale, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode sale payload")
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/sales", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "sale submission request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("sale submission rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, errors.Errorf("sale submission failed with status %d", resp.StatusCode)
	}

	var sale model.Sale
	if err := json.NewDecoder(resp.Body).Decode(&sale); err != nil {
		return nil, errors.Wrap(err, "failed to decode sale response")
	}
	return &sale, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", path)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", path)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("X-Branch-ID", c.branchID)
	return req, nil
}
