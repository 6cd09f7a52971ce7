// Package delivery classifies shipping addresses into delivery charges.
package delivery

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the delivery pricing rules.
type Config struct {
	MetroKeyword string
	MetroRate    decimal.Decimal
	DefaultRate  decimal.Decimal
}

// Validate rejects settings that would misprice orders. A zero rate is valid
// and means free delivery.
func (c Config) Validate() error {
	if strings.TrimSpace(c.MetroKeyword) == "" {
		return errors.New("delivery metro keyword must not be empty")
	}
	if c.MetroRate.IsNegative() {
		return errors.Errorf("delivery metro rate %s must not be negative", c.MetroRate)
	}
	if c.DefaultRate.IsNegative() {
		return errors.Errorf("delivery default rate %s must not be negative", c.DefaultRate)
	}
	return nil
}

// DefaultConfig returns the standard metro and nationwide rates.
func DefaultConfig() Config {
	return Config{
		MetroKeyword: "dhaka",
		MetroRate:    decimal.NewFromInt(60),
		DefaultRate:  decimal.NewFromInt(120),
	}
}

// Classifier maps a shipping address to a flat delivery charge.
type Classifier struct {
	keyword string
	metro   decimal.Decimal
	other   decimal.Decimal
}

// NewClassifier creates a Classifier from cfg as given. Callers validate cfg
// first.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		keyword: strings.ToLower(strings.TrimSpace(cfg.MetroKeyword)),
		metro:   cfg.MetroRate,
		other:   cfg.DefaultRate,
	}
}

// Charge returns the metro rate when address mentions the metro keyword in
// any letter case, and the default rate otherwise.
func (c *Classifier) Charge(address string) decimal.Decimal {
	if strings.Contains(strings.ToLower(address), c.keyword) {
		return c.metro
	}
	return c.other
}
