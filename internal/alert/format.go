package alert

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/quantfold/polyalert/internal/logger"
	"github.com/quantfold/polyalert/internal/models"
)

var actionEmoji = map[models.Action]string{
	models.ActionBuyYes: "🟢",
	models.ActionBuyNo:  "🔴",
	models.ActionWatch:  "🟡",
	models.ActionSkip:   "⚪",
}

var confidenceEmoji = map[models.Confidence]string{
	models.ConfidenceHigh:   "🔥",
	models.ConfidenceMedium: "📌",
	models.ConfidenceLow:    "💭",
}

var signalLabels = map[models.SignalType]string{
	models.TypeOddsShift:   "📊 Sudden Odds Shift",
	models.TypeVolumeSpike: "📈 Volume Spike",
	models.TypeClosingSoon: "⏰ Closing Soon",
	models.TypeNewMarket:   "🆕 New Market",
	models.TypeMispricing:  "⚖️ Potential Mispricing",
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// truncate caps s at max runes. Cutting on rune boundaries keeps the
// output valid UTF-8 for Telegram.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// FormatSignal builds the HTML notification card for one signal.
// alertNumber is the 1-based position within today's quota; it is shown
// only when a daily cap is in force.
func FormatSignal(sig *models.Signal, alertNumber, maxPerDay int) string {
	aEmoji, ok := actionEmoji[sig.Action]
	if !ok {
		aEmoji = "⚪"
	}
	cEmoji, ok := confidenceEmoji[sig.Confidence]
	if !ok {
		cEmoji = "📌"
	}
	label, ok := signalLabels[sig.Type]
	if !ok {
		label = string(sig.Type)
	}

	header := fmt.Sprintf("%s <b>%s</b>  |  %s Confidence: <b>%s</b>  |  Bet: <b>%s</b>",
		aEmoji, escapeHTML(sig.Action.Label()), cEmoji,
		escapeHTML(string(sig.Confidence)), escapeHTML(sig.BetSize.Label()))

	var tag string
	if alertNumber > 0 && maxPerDay > 0 {
		tag = fmt.Sprintf("<i>%s</i>  |  <i>Alert %d of %d today</i>", label, alertNumber, maxPerDay)
	} else {
		tag = fmt.Sprintf("<i>%s</i>", label)
	}

	marketLine := fmt.Sprintf("📋 <b>Market:</b> %s", escapeHTML(truncate(sig.MarketQuestion, 120)))
	oddsLine := fmt.Sprintf("💰 <b>Odds:</b> %s", escapeHTML(sig.Odds()))

	parts := []string{header, tag, strings.Repeat("─", 32), marketLine, oddsLine}

	if edge := sig.EdgePct(); edge >= 3 {
		parts = append(parts, fmt.Sprintf("   <i>Estimated edge: ~%.0f%%</i>", edge))
	}

	parts = append(parts, "",
		fmt.Sprintf("💡 <b>Why this is an opportunity:</b>\n%s", escapeHTML(truncate(sig.Explanation, 500))))

	if sig.RiskNote != "" {
		parts = append(parts, "",
			fmt.Sprintf("⚠️ <b>Risk:</b> %s", escapeHTML(truncate(sig.RiskNote, 300))))
	}

	parts = append(parts, "", fmt.Sprintf(`🔗 <a href="%s">View on Polymarket</a>`, sig.MarketURL()))

	return strings.Join(parts, "\n")
}

// QuotaReachedMessage is sent once when the daily cap is first hit.
func QuotaReachedMessage(maxPerDay int) string {
	return fmt.Sprintf(
		"🛑 <b>Daily alert quota reached</b>\n\n"+
			"The bot has sent its maximum of <b>%d alerts</b> for today. It will keep "+
			"scanning but won't send any more messages until <b>UTC midnight</b> resets "+
			"the counter.\n\n"+
			"<i>To raise the limit, change <code>MAX_ALERTS_PER_DAY</code>.</i>",
		maxPerDay)
}

// ConsoleNotifier logs formatted messages instead of delivering them.
// Used when no Telegram channel is configured.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Send(text string) error {
	logger.Info("Alert (console mode):\n%s", text)
	return nil
}
