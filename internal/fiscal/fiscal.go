package fiscal

import (
	"context"
	"fmt"

	"go-retail-ledger/internal/config"
	"go-retail-ledger/internal/model"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Adapter emits and cancels fiscal documents for sales
type Adapter interface {
	Emit(ctx context.Context, sale *model.Sale) (string, error)
	Cancel(ctx context.Context, key, reason string) error
}

// New picks the adapter configured by FISCAL_MODE
func New(cfg config.FiscalConfig) (Adapter, error) {
	switch cfg.Mode {
	case "", "none":
		return Noop{}, nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("fiscal: FISCAL_BASE_URL is required for http mode")
		}
		return NewHTTPAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("fiscal: unknown mode %q", cfg.Mode)
	}
}

// Noop never talks to an authority
type Noop struct{}

func (Noop) Emit(ctx context.Context, sale *model.Sale) (string, error) {
	return "", nil
}

func (Noop) Cancel(ctx context.Context, key, reason string) error {
	return nil
}

type HTTPAdapter struct {
	client *resty.Client
}

func NewHTTPAdapter(cfg config.FiscalConfig) *HTTPAdapter {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPAdapter{client: client}
}

type documentItem struct {
	ProductID  string `json:"productId"`
	Quantity   string `json:"quantity"`
	UnitCents  int64  `json:"unitCents"`
	TotalCents int64  `json:"totalCents"`
}

type documentPayment struct {
	Method      model.PaymentMethod `json:"method"`
	AmountCents int64               `json:"amountCents"`
}

type emitRequest struct {
	SaleID        string            `json:"saleId"`
	TenantID      string            `json:"tenantId"`
	Number        int64             `json:"number"`
	Mode          model.FiscalMode  `json:"mode"`
	TotalCents    int64             `json:"totalCents"`
	DiscountCents int64             `json:"discountCents"`
	Items         []documentItem    `json:"items"`
	Payments      []documentPayment `json:"payments"`
}

type emitResponse struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *HTTPAdapter) Emit(ctx context.Context, sale *model.Sale) (string, error) {
	body := emitRequest{
		SaleID:        sale.ID.String(),
		TenantID:      sale.TenantID.String(),
		Number:        sale.Number,
		Mode:          sale.FiscalMode,
		TotalCents:    sale.TotalCents,
		DiscountCents: sale.DiscountCents,
	}
	for _, item := range sale.Items {
		body.Items = append(body.Items, documentItem{
			ProductID:  item.ProductID.String(),
			Quantity:   item.Quantity.String(),
			UnitCents:  item.UnitPriceCents,
			TotalCents: item.TotalCents,
		})
	}
	for _, p := range sale.Payments {
		body.Payments = append(body.Payments, documentPayment{Method: p.Method, AmountCents: p.AmountCents})
	}

	var result emitResponse
	var failure errorResponse
	resp, err := a.request(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/documents")
	if err != nil {
		return "", fmt.Errorf("fiscal emit: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fiscal emit: status %d: %s", resp.StatusCode(), failure.Error)
	}
	if result.Key == "" {
		return "", fmt.Errorf("fiscal emit: empty document key")
	}
	return result.Key, nil
}

func (a *HTTPAdapter) Cancel(ctx context.Context, key, reason string) error {
	var failure errorResponse
	resp, err := a.request(ctx).
		SetPathParam("key", key).
		SetBody(map[string]string{"reason": reason}).
		SetError(&failure).
		Post("/documents/{key}/cancel")
	if err != nil {
		return fmt.Errorf("fiscal cancel: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fiscal cancel: status %d: %s", resp.StatusCode(), failure.Error)
	}
	return nil
}

// request carries the trace context to the fiscal service
func (a *HTTPAdapter) request(ctx context.Context) *resty.Request {
	req := a.client.R().SetContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req
}
