// Package detect implements the opportunity detectors and the per-cycle
// aggregator that runs them over fetched events.
package detect

import (
	"strings"

	"github.com/quantfold/polyalert/internal/models"
)

// Config holds the shared detection thresholds.
type Config struct {
	OddsShiftThreshold    float64
	VolumeSpikeMultiplier float64
	MinVolume24h          float64
	ClosingSoonHours      float64
	ClosingEdgeMin        float64
	ClosingEdgeMax        float64
	NewMarketHours        float64
	NewMarketMinLiquidity float64
	MispriceSumDeviation  float64
	MispriceMinLiquidity  float64

	// TopicKeywords, when non-empty, restricts detection to markets whose
	// question or description contains at least one keyword
	// (case-insensitive substring match).
	TopicKeywords []string
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		OddsShiftThreshold:    0.10,
		VolumeSpikeMultiplier: 3.0,
		MinVolume24h:          5000,
		ClosingSoonHours:      48,
		ClosingEdgeMin:        0.10,
		ClosingEdgeMax:        0.90,
		NewMarketHours:        24,
		NewMarketMinLiquidity: 1000,
		MispriceSumDeviation:  0.05,
		MispriceMinLiquidity:  5000,
	}
}

func (c Config) matchesTopics(m *models.Market) bool {
	if len(c.TopicKeywords) == 0 {
		return true
	}
	text := strings.ToLower(m.Question + " " + m.Description)
	for _, kw := range c.TopicKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// betSizeFor maps confidence and edge magnitude onto a stake bucket.
// The rule is shared by every detector.
func betSizeFor(c models.Confidence, edgePct float64) models.BetSize {
	switch {
	case c == models.ConfidenceHigh && edgePct >= 15:
		return models.BetLarge
	case (c == models.ConfidenceHigh || c == models.ConfidenceMedium) && edgePct >= 8:
		return models.BetMedium
	case c != models.ConfidenceLow && edgePct >= 3:
		return models.BetSmall
	default:
		return models.BetNone
	}
}

// liquidityNote returns an escalating caution for thin markets, or "" when
// liquidity is comfortable.
func liquidityNote(liq float64) string {
	if liq < 2000 {
		return "Very low liquidity: large orders can move the price significantly. Use limit orders and keep stakes tiny."
	}
	if liq < 10000 {
		return "Moderate liquidity: stick to small stakes to avoid slippage."
	}
	return ""
}

// appendNote joins risk notes with a space, tolerating an empty base.
func appendNote(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + " " + extra
}
