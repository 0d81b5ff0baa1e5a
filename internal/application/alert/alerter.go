package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Subject is the subject line of every alert message.
const Subject = "Scrape Alert"

// Candidate is one accepted listing offered to the alerter.
type Candidate struct {
	ProductCode        string
	DiscountPercentage decimal.NullDecimal
	Price              decimal.Decimal
	Link               string
}

// Watchlist is the source of watched product codes.
type Watchlist interface {
	Load(ctx context.Context) ([]string, error)
}

// Notifier delivers an alert message.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Config configures an Alerter.
type Config struct {
	// Threshold is the minimum discount percentage that fires an alert.
	Threshold decimal.Decimal
	Recipient string
}

// Alerter notifies when a watched product is discounted past the threshold.
// Delivery failures are logged and never reach the caller.
type Alerter struct {
	source    Watchlist
	notifier  Notifier
	threshold decimal.Decimal
	recipient string
	logger    *zap.Logger

	mu    sync.RWMutex
	codes map[string]struct{}
}

// NewAlerter creates an Alerter with an empty watchlist. Call Reload before
// the first Check.
func NewAlerter(source Watchlist, notifier Notifier, cfg Config, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		source:    source,
		notifier:  notifier,
		threshold: cfg.Threshold,
		recipient: cfg.Recipient,
		logger:    logger,
		codes:     make(map[string]struct{}),
	}
}

// Reload replaces the watched codes with the current contents of the
// source. On error the previous set stays in effect.
func (a *Alerter) Reload(ctx context.Context) error {
	codes, err := a.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	a.mu.Lock()
	a.codes = set
	a.mu.Unlock()

	a.logger.Debug("Watchlist loaded", zap.Int("codes", len(set)))
	return nil
}

// Watching reports whether code is on the current watchlist.
func (a *Alerter) Watching(code string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.codes[code]
	return ok
}

// Check sends an alert when c is watched and its discount is at least the
// threshold. It reports whether the alert conditions were met, whether or
// not delivery succeeded.
func (a *Alerter) Check(ctx context.Context, c Candidate) bool {
	if !a.Watching(c.ProductCode) {
		return false
	}
	if !c.DiscountPercentage.Valid || c.DiscountPercentage.Decimal.LessThan(a.threshold) {
		return false
	}

	body := FormatBody(c, a.threshold)
	if err := a.notifier.Send(ctx, a.recipient, Subject, body); err != nil {
		a.logger.Error("Failed to send alert",
			zap.String("product_code", c.ProductCode),
			zap.String("recipient", a.recipient),
			zap.Error(err),
		)
		return true
	}

	a.logger.Info("Alert sent",
		zap.String("product_code", c.ProductCode),
		zap.String("discount_percentage", c.DiscountPercentage.Decimal.String()),
	)
	return true
}

// Threshold returns the configured discount threshold.
func (a *Alerter) Threshold() decimal.Decimal {
	return a.threshold
}

// FormatBody renders the alert message body.
func FormatBody(c Candidate, threshold decimal.Decimal) string {
	return fmt.Sprintf("Check out %s\nPrice is %s\nA %s%% discount\nDiscount percentage alert threshold: %s",
		c.Link,
		c.Price.String(),
		c.DiscountPercentage.Decimal.String(),
		threshold.String(),
	)
}

// EditableWatchlist is a Watchlist operators can change while runs are in
// progress. Add and Remove are idempotent; Remove reports whether the code
// was present.
type EditableWatchlist interface {
	Watchlist
	Add(ctx context.Context, code string) error
	Remove(ctx context.Context, code string) (bool, error)
}
