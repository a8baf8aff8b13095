// Package models defines the core domain entities: events, markets, and signals.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Float is a float64 that tolerates the Gamma API's loose typing: numeric
// fields arrive as numbers, quoted numbers, null, or garbage. Anything that
// cannot be parsed decodes to zero instead of failing the whole payload.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = Float(v)
	return nil
}

// Event is a group of related markets sharing one Polymarket page.
type Event struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Active      bool     `json:"active"`
	Closed      bool     `json:"closed"`
	Liquidity   Float    `json:"liquidity"`
	Volume24hr  Float    `json:"volume24hr"`
	Markets     []Market `json:"markets"`
}

// Market is a single binary prediction contract inside an event.
// Outcomes and OutcomePrices are JSON-encoded string arrays, exactly as the
// Gamma API delivers them.
type Market struct {
	ID                  string `json:"id"`
	Slug                string `json:"slug"`
	Question            string `json:"question"`
	Description         string `json:"description,omitempty"`
	GroupItemTitle      string `json:"groupItemTitle,omitempty"`
	Active              bool   `json:"active"`
	Closed              bool   `json:"closed"`
	EnableOrderBook     bool   `json:"enableOrderBook"`
	Outcomes            string `json:"outcomes"`
	OutcomePrices       string `json:"outcomePrices"`
	OneDayPriceChange   Float  `json:"oneDayPriceChange"`
	OneWeekPriceChange  Float  `json:"oneWeekPriceChange"`
	OneMonthPriceChange Float  `json:"oneMonthPriceChange"`
	Volume24hr          Float  `json:"volume24hr"`
	Volume1mo           Float  `json:"volume1mo"`
	LiquidityClob       Float  `json:"liquidityClob"`
	LiquidityNum        Float  `json:"liquidityNum"`
	EndDate             string `json:"endDate"`
	CreatedAt           string `json:"createdAt"`
}

// Tradeable reports whether the market is active, not closed, and has an
// order book enabled. Detectors skip everything else.
func (m *Market) Tradeable() bool {
	return m.Active && !m.Closed && m.EnableOrderBook
}

// Prices parses the outcomePrices JSON string array into floats.
// Malformed payloads yield nil rather than an error.
func (m *Market) Prices() []float64 {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil
	}
	prices := make([]float64, 0, len(raw))
	for _, p := range raw {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		prices = append(prices, v)
	}
	return prices
}

// OutcomeLabels parses the outcomes JSON string array ("[\"Yes\",\"No\"]").
func (m *Market) OutcomeLabels() []string {
	var labels []string
	if err := json.Unmarshal([]byte(m.Outcomes), &labels); err != nil {
		return nil
	}
	return labels
}

// Liquidity returns the CLOB liquidity figure, falling back to the legacy
// numeric field when the CLOB one is absent.
func (m *Market) Liquidity() float64 {
	if m.LiquidityClob > 0 {
		return float64(m.LiquidityClob)
	}
	return float64(m.LiquidityNum)
}

// EndTime parses the ISO-8601 endDate. ok is false when missing or malformed.
func (m *Market) EndTime() (t time.Time, ok bool) {
	return parseISOTime(m.EndDate)
}

// CreatedTime parses the ISO-8601 createdAt. ok is false when missing or malformed.
func (m *Market) CreatedTime() (t time.Time, ok bool) {
	return parseISOTime(m.CreatedAt)
}

func parseISOTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
