package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// OrderProbability is the three-valued confidence that a project will be won.
// The stored value is the percentage (0, 50 or 100).
type OrderProbability int

const (
	OrderProbabilityLow    OrderProbability = 0
	OrderProbabilityMedium OrderProbability = 50
	OrderProbabilityHigh   OrderProbability = 100
)

// OrderProbabilities lists the variants from most to least likely.
var OrderProbabilities = []OrderProbability{OrderProbabilityHigh, OrderProbabilityMedium, OrderProbabilityLow}

// Valid reports whether p is one of the three known variants.
func (p OrderProbability) Valid() bool {
	switch p {
	case OrderProbabilityLow, OrderProbabilityMedium, OrderProbabilityHigh:
		return true
	}
	return false
}

func (p OrderProbability) Value() int { return int(p) }

// Symbol is the mark shown in lists and exports.
func (p OrderProbability) Symbol() string {
	switch p {
	case OrderProbabilityHigh:
		return "〇"
	case OrderProbabilityMedium:
		return "△"
	case OrderProbabilityLow:
		return "×"
	}
	return "?"
}

func (p OrderProbability) Description() string {
	switch p {
	case OrderProbabilityHigh:
		return "高"
	case OrderProbabilityMedium:
		return "中"
	case OrderProbabilityLow:
		return "低"
	}
	return "unknown"
}

// Label renders "〇 100%" as used by exports.
func (p OrderProbability) Label() string {
	return fmt.Sprintf("%s %d%%", p.Symbol(), p.Value())
}

func (p OrderProbability) String() string { return p.Symbol() }

func (p OrderProbability) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}

// OrderProbabilityFromValue maps a numeric percentage to a variant.
func OrderProbabilityFromValue(v int) (OrderProbability, error) {
	p := OrderProbability(v)
	if !p.Valid() {
		return 0, fmt.Errorf("invalid order probability value: %d", v)
	}
	return p, nil
}

var orderProbabilityTokens = map[string]OrderProbability{
	"〇":      OrderProbabilityHigh,
	"○":      OrderProbabilityHigh,
	"◯":      OrderProbabilityHigh,
	"△":      OrderProbabilityMedium,
	"×":      OrderProbabilityLow,
	"✕":      OrderProbabilityLow,
	"✖":      OrderProbabilityLow,
	"high":   OrderProbabilityHigh,
	"medium": OrderProbabilityMedium,
	"low":    OrderProbabilityLow,
	"100":    OrderProbabilityHigh,
	"50":     OrderProbabilityMedium,
	"0":      OrderProbabilityLow,
}

// ParseOrderProbability resolves a raw cell value (symbol, English word or number).
// Full-width forms such as "１００" or "ＨＩＧＨ" are folded before lookup.
func ParseOrderProbability(raw string) (OrderProbability, bool) {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" {
		return 0, false
	}
	if p, ok := orderProbabilityTokens[strings.ToLower(s)]; ok {
		return p, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	switch f {
	case 0, 50, 100:
		return OrderProbability(int(f)), true
	}
	return 0, false
}
