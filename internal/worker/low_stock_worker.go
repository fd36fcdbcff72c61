package worker

// low_stock_worker.go
// Processes QueueLowStock jobs: mails a low-stock notice for every alert the
// sale ingestion raised or refreshed. Delivery is best effort and never
// affects the sale that triggered it.

import (
	"context"
	"encoding/json"
	"fmt"

	"possync/internal/infra"

	"github.com/rs/zerolog/log"
)

// LowStockJobPayload is the job envelope sent to QueueLowStock.
type LowStockJobPayload struct {
	AlertID      string `json:"alert_id"`
	OwnerID      string `json:"owner_id"`
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level"`
	Outcome      string `json:"outcome"` // raised | refreshed
	// To is the owner's own recipient; empty means the worker default.
	To string `json:"to,omitempty"`
}

// Mailer is the subset of infra.Mailer the worker needs.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// LowStockWorker sends low-stock notices through an SMTP circuit breaker.
type LowStockWorker struct {
	mailer Mailer
	cb     *infra.CircuitBreaker
	to     string
}

func NewLowStockWorker(mailer Mailer, cb *infra.CircuitBreaker, to string) *LowStockWorker {
	return &LowStockWorker{mailer: mailer, cb: cb, to: to}
}

func (w *LowStockWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload LowStockJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Malformed payloads never succeed; retrying is pointless.
		log.Error().Err(err).Msg("low_stock_worker: invalid payload")
		return nil
	}
	to := payload.To
	if to == "" {
		to = w.to
	}
	if to == "" {
		log.Debug().Str("sku", payload.SKU).Msg("low_stock_worker: no recipient configured, skipping")
		return nil
	}

	subject, body := renderLowStockNotice(payload)
	err := w.cb.Execute(func() error {
		return w.mailer.Send([]string{to}, subject, body)
	})
	if err != nil {
		log.Error().Err(err).Str("sku", payload.SKU).Msg("low_stock_worker: failed to send notice")
		return err
	}
	log.Info().Str("sku", payload.SKU).Str("severity", payload.Severity).Msg("low_stock_worker: notice sent")
	return nil
}

func renderLowStockNotice(p LowStockJobPayload) (subject, body string) {
	subject = fmt.Sprintf("[%s] Low stock: %s (%s)", p.Severity, p.ProductName, p.SKU)
	body = fmt.Sprintf("%s\n\nProduct: %s\nSKU: %s\nCurrent stock: %d\nReorder level: %d\n",
		p.Message, p.ProductName, p.SKU, p.Stock, p.ReorderLevel)
	return subject, body
}
