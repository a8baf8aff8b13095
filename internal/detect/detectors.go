package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfold/polyalert/internal/models"
)

// OddsShift flags markets whose YES price moved at least
// OddsShiftThreshold over the last 24 hours.
//
// A sharp move up into rich territory is faded (BUY NO); a move up with
// room left rides the momentum (BUY YES). A sharp move down is a
// contrarian buy unless the price is close to zero, where the market is
// probably resolving NO and we only watch.
func (c Config) OddsShift(m *models.Market, eventSlug string) *models.Signal {
	if !c.matchesTopics(m) {
		return nil
	}

	change := float64(m.OneDayPriceChange)
	absChange := math.Abs(change)
	if absChange < c.OddsShiftThreshold {
		return nil
	}

	prices := m.Prices()
	if len(prices) == 0 {
		return nil
	}
	yes := prices[0]
	no := 1.0 - yes

	// Price at an extreme means the market has effectively resolved.
	if yes >= 0.99 || yes <= 0.01 {
		return nil
	}

	liq := m.Liquidity()
	weekChange := float64(m.OneWeekPriceChange)

	var confidence models.Confidence
	switch {
	case absChange >= 0.25:
		confidence = models.ConfidenceHigh
	case absChange >= 0.15:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	var action models.Action
	var explanation string
	switch {
	case change > 0 && yes > 0.70:
		action = models.ActionBuyNo
		explanation = fmt.Sprintf(
			"YES jumped %.0f¢ in 24h and now sits at %.0f¢, a likely overshoot. "+
				"Buying NO at %.0f¢ bets on a correction back toward fair value.",
			absChange*100, yes*100, no*100)
	case change > 0:
		action = models.ActionBuyYes
		explanation = fmt.Sprintf(
			"YES surged %.0f¢ in 24h to %.0f¢, suggesting new information is driving "+
				"the market. Momentum often continues short-term; buying YES rides that "+
				"wave before it fully prices in.",
			absChange*100, yes*100)
	case yes < 0.15:
		// Near zero: likely resolving NO, contrarian entry is too risky.
		action = models.ActionWatch
		confidence = models.ConfidenceLow
		explanation = fmt.Sprintf(
			"YES crashed %.0f¢ in 24h and is now at just %.0f¢. The market is pricing "+
				"near-certain NO. Watch for reversal news before considering a contrarian "+
				"YES bet.",
			absChange*100, yes*100)
	default:
		action = models.ActionBuyYes
		explanation = fmt.Sprintf(
			"YES dropped %.0f¢ in 24h to %.0f¢, a sharp sell-off that may be an "+
				"overreaction. If the underlying situation hasn't changed, buying YES "+
				"here could capture the bounce.",
			absChange*100, yes*100)
	}

	risk := liquidityNote(liq)
	// A zero weekly change is treated as no contradiction.
	if weekChange != 0 && (change > 0) != (weekChange > 0) {
		risk = appendNote(risk, fmt.Sprintf(
			"Note: the 7-day trend (%+.0f¢) runs opposite to today's move; this could "+
				"be a short-term spike rather than a trend change.",
			weekChange*100))
	}

	return &models.Signal{
		MarketID:       m.ID,
		MarketQuestion: m.Question,
		MarketSlug:     m.Slug,
		EventSlug:      eventSlug,
		Type:           models.TypeOddsShift,
		YesPrice:       yes,
		NoPrice:        no,
		Action:         action,
		Confidence:     confidence,
		BetSize:        betSizeFor(confidence, absChange*100),
		Explanation:    explanation,
		RiskNote:       risk,
		Details: models.OddsShiftDetails{
			PriceChange24h: change,
			PriceChange1w:  weekChange,
			PriceChange1m:  float64(m.OneMonthPriceChange),
			Liquidity:      liq,
		},
	}
}

// VolumeSpike flags markets trading at a multiple of their normal daily
// volume. The recommended side follows the concurrent price direction;
// heavy volume with a flat price is a contested market and only watched.
func (c Config) VolumeSpike(m *models.Market, eventSlug string) *models.Signal {
	if !c.matchesTopics(m) {
		return nil
	}

	vol24 := float64(m.Volume24hr)
	vol1mo := float64(m.Volume1mo)
	if vol24 < c.MinVolume24h || vol1mo <= 0 {
		return nil
	}

	avgDaily := vol1mo / 30.0
	ratio := vol24 / avgDaily
	if ratio < c.VolumeSpikeMultiplier {
		return nil
	}

	prices := m.Prices()
	if len(prices) == 0 {
		return nil
	}
	yes := prices[0]
	no := 1.0 - yes
	if yes >= 0.98 || yes <= 0.02 {
		return nil
	}

	liq := m.Liquidity()
	change := float64(m.OneDayPriceChange)

	var confidence models.Confidence
	switch {
	case ratio >= 10:
		confidence = models.ConfidenceHigh
	case ratio >= 5:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	var action models.Action
	var explanation string
	switch {
	case change > 0.03:
		action = models.ActionBuyYes
		explanation = fmt.Sprintf(
			"Trading volume is %.1fx the normal daily average ($%.0f in 24h) and the "+
				"price is rising (+%.0f¢). Heavy buying usually signals informed traders "+
				"acting on new information; buying YES follows the smart money.",
			ratio, vol24, change*100)
	case change < -0.03:
		action = models.ActionBuyNo
		explanation = fmt.Sprintf(
			"Trading volume is %.1fx the normal daily average ($%.0f in 24h) and the "+
				"price is falling (%.0f¢). Heavy selling pressure suggests informed "+
				"traders are exiting YES; buying NO follows the volume-driven move.",
			ratio, vol24, change*100)
	default:
		// High volume, flat price: two-sided tug-of-war.
		action = models.ActionWatch
		confidence = models.ConfidenceLow
		explanation = fmt.Sprintf(
			"Unusually high volume (%.1fx normal, $%.0f in 24h) but the price hasn't "+
				"moved much yet, suggesting a tug-of-war between buyers and sellers. "+
				"Watch for a breakout in either direction before committing.",
			ratio, vol24)
	}

	risk := liquidityNote(liq)
	if ratio >= 10 && risk == "" {
		risk = "Note: extreme volume spikes can be wash trading or a single large order. Verify with external news."
	}

	return &models.Signal{
		MarketID:       m.ID,
		MarketQuestion: m.Question,
		MarketSlug:     m.Slug,
		EventSlug:      eventSlug,
		Type:           models.TypeVolumeSpike,
		YesPrice:       yes,
		NoPrice:        no,
		Action:         action,
		Confidence:     confidence,
		BetSize:        betSizeFor(confidence, math.Min(ratio*3, 40)),
		Explanation:    explanation,
		RiskNote:       risk,
		Details: models.VolumeSpikeDetails{
			Volume24h:      vol24,
			AvgDaily:       avgDaily,
			SpikeRatio:     ratio,
			PriceChange24h: change,
			Liquidity:      liq,
		},
	}
}

// ClosingSoon flags markets resolving within ClosingSoonHours whose price
// is still inside the configured mid-band. Decisive prices near expiry are
// lock-in buys; genuinely uncertain ones are only watched.
func (c Config) ClosingSoon(m *models.Market, eventSlug string, now time.Time) *models.Signal {
	if !c.matchesTopics(m) {
		return nil
	}

	end, ok := m.EndTime()
	if !ok {
		return nil
	}
	hoursLeft := end.Sub(now).Hours()
	if hoursLeft <= 0 || hoursLeft > c.ClosingSoonHours {
		return nil
	}

	prices := m.Prices()
	if len(prices) == 0 {
		return nil
	}
	yes := prices[0]
	no := 1.0 - yes
	if yes < c.ClosingEdgeMin || yes > c.ClosingEdgeMax {
		return nil
	}

	liq := m.Liquidity()

	var confidence models.Confidence
	switch {
	case hoursLeft <= 6:
		confidence = models.ConfidenceHigh
	case hoursLeft <= 24:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	var action models.Action
	var edge float64
	var explanation string
	switch {
	case yes >= 0.75:
		action = models.ActionBuyYes
		edge = (yes - 0.5) * 100
		explanation = fmt.Sprintf(
			"This market resolves in %.1f hours and YES is already at %.0f¢. Buying "+
				"now locks in a %.0f%% return if the outcome is YES, with little time "+
				"left for the odds to move against you.",
			hoursLeft, yes*100, (1/yes-1)*100)
	case yes <= 0.25:
		action = models.ActionBuyNo
		edge = (0.5 - yes) * 100
		explanation = fmt.Sprintf(
			"This market resolves in %.1f hours and YES is only %.0f¢: the market "+
				"strongly expects NO. Buying NO at %.0f¢ offers a %.0f%% return if the "+
				"outcome is indeed NO, with little time left for a reversal.",
			hoursLeft, yes*100, no*100, (1/no-1)*100)
	default:
		action = models.ActionWatch
		confidence = models.ConfidenceLow
		edge = math.Abs(yes-0.5) * 100
		explanation = fmt.Sprintf(
			"Market closes in %.1f hours with YES at %.0f¢: genuinely uncertain. Only "+
				"bet if you have specific knowledge the market may not have priced in yet.",
			hoursLeft, yes*100)
	}

	risk := liquidityNote(liq)
	if hoursLeft <= 3 {
		risk = appendNote(risk, "Resolves in under 3 hours: act quickly or the opportunity will be gone.")
	}

	return &models.Signal{
		MarketID:       m.ID,
		MarketQuestion: m.Question,
		MarketSlug:     m.Slug,
		EventSlug:      eventSlug,
		Type:           models.TypeClosingSoon,
		YesPrice:       yes,
		NoPrice:        no,
		Action:         action,
		Confidence:     confidence,
		BetSize:        betSizeFor(confidence, edge),
		Explanation:    explanation,
		RiskNote:       risk,
		Details: models.ClosingSoonDetails{
			HoursUntilClose: hoursLeft,
			EndDate:         end,
			Liquidity:       liq,
		},
	}
}

// NewMarket flags recently created markets with enough liquidity to matter.
// With no price history the confidence tops out at MEDIUM, and only a
// clearly skewed opening price earns a directional recommendation.
func (c Config) NewMarket(m *models.Market, eventSlug string, now time.Time) *models.Signal {
	if !c.matchesTopics(m) {
		return nil
	}

	created, ok := m.CreatedTime()
	if !ok {
		return nil
	}
	ageHours := now.Sub(created).Hours()
	if ageHours > c.NewMarketHours {
		return nil
	}

	liq := m.Liquidity()
	if liq < c.NewMarketMinLiquidity {
		return nil
	}

	prices := m.Prices()
	if len(prices) == 0 {
		return nil
	}
	yes := prices[0]
	no := 1.0 - yes
	if yes >= 0.97 || yes <= 0.03 {
		return nil
	}

	var action models.Action
	var confidence models.Confidence
	var explanation string
	switch {
	case yes <= 0.20:
		action = models.ActionBuyNo
		confidence = models.ConfidenceMedium
		explanation = fmt.Sprintf(
			"New market (%.0fh old) opened at just %.0f¢ for YES: the creator already "+
				"has a strong NO bias. Early liquidity is thin, so odds may not reflect "+
				"all public information yet. Buying NO at %.0f¢ aligns with the opening signal.",
			ageHours, yes*100, no*100)
	case yes >= 0.80:
		action = models.ActionBuyYes
		confidence = models.ConfidenceMedium
		explanation = fmt.Sprintf(
			"New market (%.0fh old) opened at %.0f¢ for YES: a strong opening bias. "+
				"Early movers often set aggressive prices. Buying YES follows the initial "+
				"informed view before the broader market weighs in.",
			ageHours, yes*100)
	default:
		action = models.ActionWatch
		confidence = models.ConfidenceLow
		explanation = fmt.Sprintf(
			"Brand-new market (%.0fh old) with $%.0f in liquidity. Odds are near 50/50 "+
				"(%.0f¢ YES), so the market hasn't formed a strong view yet. Research the "+
				"question and return once you have an edge over the current price.",
			ageHours, liq, yes*100)
	}

	risk := appendNote(liquidityNote(liq),
		"New markets have no price history; treat early odds as a rough estimate only.")

	return &models.Signal{
		MarketID:       m.ID,
		MarketQuestion: m.Question,
		MarketSlug:     m.Slug,
		EventSlug:      eventSlug,
		Type:           models.TypeNewMarket,
		YesPrice:       yes,
		NoPrice:        no,
		Action:         action,
		Confidence:     confidence,
		BetSize:        betSizeFor(confidence, 10),
		Explanation:    explanation,
		RiskNote:       risk,
		Details: models.NewMarketDetails{
			AgeHours:  ageHours,
			Liquidity: liq,
		},
	}
}

// Mispricing runs on a whole multi-market event: when the implied YES
// probabilities of all open outcomes deviate from 100%, it picks the single
// most mispriced outcome. Over-sum fades the priciest outcome (BUY NO);
// under-sum buys the cheapest one at a discount.
func (c Config) Mispricing(ev *models.Event) *models.Signal {
	if len(ev.Markets) < 2 {
		return nil
	}

	type priced struct {
		market *models.Market
		yes    float64
	}
	var open []priced
	var totalLiq float64
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if !m.Tradeable() {
			continue
		}
		totalLiq += m.Liquidity()
		if prices := m.Prices(); len(prices) > 0 {
			open = append(open, priced{market: m, yes: prices[0]})
		}
	}
	if len(open) < 2 || totalLiq < c.MispriceMinLiquidity {
		return nil
	}

	var probSum float64
	for _, p := range open {
		probSum += p.yes
	}
	// Summed float prices land a hair under round thresholds (0.60+0.55
	// gives a deviation just below 0.15), so compare with a tolerance.
	const bandTolerance = 1e-9
	deviation := math.Abs(probSum - 1.0)
	if deviation < c.MispriceSumDeviation-bandTolerance {
		return nil
	}

	// Prop-bet style events group many independent outcomes whose prices
	// legitimately sum far above 100%. Those are not true mispricings.
	if len(open) > 20 || probSum > 3.0 {
		return nil
	}

	var confidence models.Confidence
	switch {
	case deviation >= 0.15-bandTolerance:
		confidence = models.ConfidenceHigh
	case deviation >= 0.08-bandTolerance:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	pick := open[0]
	var action models.Action
	var explanation string
	if probSum > 1.0 {
		// Over-sum: fade the most overpriced outcome.
		for _, p := range open[1:] {
			if p.yes > pick.yes {
				pick = p
			}
		}
		action = models.ActionBuyNo
		explanation = fmt.Sprintf(
			"The %d outcomes in this event sum to %.0f¢ (should be 100¢), a %.0f¢ "+
				"overpricing. The most overpriced outcome is %q at %.0f¢. Buying NO on it "+
				"is a near-arbitrage: if any other outcome wins, you profit.",
			len(open), probSum*100, deviation*100, outcomeLabel(pick.market), pick.yes*100)
	} else {
		// Under-sum: buy the most underpriced outcome.
		for _, p := range open[1:] {
			if p.yes < pick.yes {
				pick = p
			}
		}
		action = models.ActionBuyYes
		explanation = fmt.Sprintf(
			"The %d outcomes in this event sum to only %.0f¢ (should be 100¢), a %.0f¢ "+
				"underpricing. The most underpriced outcome is %q at %.0f¢. Buying YES "+
				"gives you exposure at a discount to fair value.",
			len(open), probSum*100, deviation*100, outcomeLabel(pick.market), pick.yes*100)
	}

	risk := appendNote(liquidityNote(totalLiq),
		"Mispricing can persist if liquidity is fragmented; check that the specific outcome you trade has enough depth.")

	slug := pick.market.Slug
	if slug == "" {
		slug = ev.Slug
	}

	return &models.Signal{
		MarketID:       ev.ID,
		MarketQuestion: ev.Title,
		MarketSlug:     slug,
		EventSlug:      ev.Slug,
		Type:           models.TypeMispricing,
		YesPrice:       pick.yes,
		NoPrice:        1.0 - pick.yes,
		Action:         action,
		Confidence:     confidence,
		BetSize:        betSizeFor(confidence, deviation*100),
		Explanation:    explanation,
		RiskNote:       risk,
		Details: models.MispricingDetails{
			ProbabilitySum: probSum,
			Deviation:      deviation,
			NumOutcomes:    len(open),
			TotalLiquidity: totalLiq,
		},
	}
}

func outcomeLabel(m *models.Market) string {
	if m.GroupItemTitle != "" {
		return m.GroupItemTitle
	}
	q := m.Question
	if len(q) > 40 {
		q = q[:40]
	}
	return q
}
