package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SignalType identifies which detector produced a signal.
type SignalType string

const (
	TypeOddsShift   SignalType = "odds_shift"
	TypeVolumeSpike SignalType = "volume_spike"
	TypeClosingSoon SignalType = "closing_soon"
	TypeNewMarket   SignalType = "new_market"
	TypeMispricing  SignalType = "mispricing"
)

// Action is the recommended trade for a signal.
type Action string

const (
	ActionBuyYes Action = "BUY_YES"
	ActionBuyNo  Action = "BUY_NO"
	ActionWatch  Action = "WATCH"
	ActionSkip   Action = "SKIP"
)

// Label returns the human-readable form shown in notifications.
func (a Action) Label() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// NormalizeAction maps user-supplied spellings ("buy yes", "BUY_NO") onto
// the canonical Action value.
func NormalizeAction(s string) Action {
	return Action(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_"))
}

// Confidence is the qualitative strength tier of a signal.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Rank returns the position of the tier in the total order LOW < MEDIUM < HIGH.
// Unknown values rank below LOW so they never pass a confidence floor.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return -1
	}
}

// ParseConfidence maps a case-insensitive tier name onto a Confidence.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return ConfidenceLow, true
	case "MEDIUM":
		return ConfidenceMedium, true
	case "HIGH":
		return ConfidenceHigh, true
	default:
		return "", false
	}
}

// BetSize is the suggested stake bucket, derived from confidence and edge.
type BetSize string

const (
	BetLarge  BetSize = "LARGE"
	BetMedium BetSize = "MEDIUM"
	BetSmall  BetSize = "SMALL"
	BetNone   BetSize = "NONE"
)

// Label returns the display form with the suggested dollar range.
func (b BetSize) Label() string {
	switch b {
	case BetLarge:
		return "LARGE ($50–100)"
	case BetMedium:
		return "MEDIUM ($20–50)"
	case BetSmall:
		return "SMALL ($5–10)"
	default:
		return "NONE"
	}
}

// Details carries the signal-type-specific numeric facts used for scoring.
// Exactly one concrete type exists per SignalType.
type Details interface {
	signalDetails()
}

type OddsShiftDetails struct {
	PriceChange24h float64
	PriceChange1w  float64
	PriceChange1m  float64
	Liquidity      float64
}

type VolumeSpikeDetails struct {
	Volume24h      float64
	AvgDaily       float64
	SpikeRatio     float64
	PriceChange24h float64
	Liquidity      float64
}

type ClosingSoonDetails struct {
	HoursUntilClose float64
	EndDate         time.Time
	Liquidity       float64
}

type NewMarketDetails struct {
	AgeHours  float64
	Liquidity float64
}

type MispricingDetails struct {
	ProbabilitySum float64
	Deviation      float64
	NumOutcomes    int
	TotalLiquidity float64
}

func (OddsShiftDetails) signalDetails()   {}
func (VolumeSpikeDetails) signalDetails() {}
func (ClosingSoonDetails) signalDetails() {}
func (NewMarketDetails) signalDetails()   {}
func (MispricingDetails) signalDetails()  {}

// Signal is one detected opportunity with a structured recommendation.
// Signals are immutable once created; a fresh set is produced every cycle.
type Signal struct {
	MarketID       string
	MarketQuestion string
	MarketSlug     string
	EventSlug      string
	Type           SignalType

	YesPrice float64
	NoPrice  float64

	Action      Action
	Confidence  Confidence
	BetSize     BetSize
	Explanation string
	RiskNote    string

	Details Details
}

// IdentityKey is the deduplication and cooldown key. Two signals of
// different type on the same market are distinct.
func (s *Signal) IdentityKey() string {
	return s.MarketID + ":" + string(s.Type)
}

// MarketURL is the Polymarket page for the signal's event.
func (s *Signal) MarketURL() string {
	slug := s.EventSlug
	if slug == "" {
		slug = s.MarketSlug
	}
	return "https://polymarket.com/event/" + slug
}

// Odds renders the price pair as "YES 35¢ / NO 65¢".
func (s *Signal) Odds() string {
	return fmt.Sprintf("YES %.0f¢ / NO %.0f¢", s.YesPrice*100, s.NoPrice*100)
}

// EdgePct estimates the advantage of the recommended action as a
// percentage. The formula is signal-type specific.
func (s *Signal) EdgePct() float64 {
	switch d := s.Details.(type) {
	case OddsShiftDetails:
		return math.Abs(d.PriceChange24h) * 100
	case VolumeSpikeDetails:
		return math.Min(d.SpikeRatio*5, 50)
	case ClosingSoonDetails:
		// Distance from 50¢: the more extreme, the clearer the bet.
		return math.Abs(s.YesPrice-0.5) * 100
	case NewMarketDetails:
		// Early-mover premium is qualitative.
		return 10.0
	case MispricingDetails:
		return d.Deviation * 100
	default:
		return 0
	}
}
