// Package alert arbitrates detected signals before notification: it
// quality-filters, applies per-key cooldowns, ranks by composite score,
// enforces the daily quota, and dispatches what survives.
package alert

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/quantfold/polyalert/internal/logger"
	"github.com/quantfold/polyalert/internal/models"
)

// unlimitedSlots is reported when the daily cap is disabled.
const unlimitedSlots = 999999

// Notifier delivers one formatted message. Send returns an error when the
// message could not be delivered; the signal then stays eligible for the
// next cycle.
type Notifier interface {
	Send(text string) error
}

// Recorder persists a dispatched signal for auditing. Failures are logged
// and never affect quota or cooldown state.
type Recorder interface {
	RecordDispatch(sig *models.Signal, score float64, sentAt time.Time) error
}

// Config holds the arbitration settings.
type Config struct {
	// MinConfidence is the lowest tier that passes the quality filter.
	MinConfidence models.Confidence
	// AllowedActions lists the actions that pass the quality filter.
	// Spellings are normalized, so "BUY YES" and "buy_yes" both work.
	AllowedActions []string
	// MaxPerDay caps dispatches per UTC calendar day. Zero or negative
	// disables the cap.
	MaxPerDay int
	// Cooldown is the minimum interval between dispatches sharing one
	// identity key.
	Cooldown time.Duration
}

// DefaultConfig favors only the strongest actionable signals.
func DefaultConfig() Config {
	return Config{
		MinConfidence:  models.ConfidenceHigh,
		AllowedActions: []string{"BUY_YES", "BUY_NO"},
		MaxPerDay:      5,
		Cooldown:       time.Hour,
	}
}

// Pipeline is the stateful arbitration service. Cooldown entries and daily
// quota counters live for the lifetime of the process; everything else is
// recomputed per cycle. Safe for concurrent use, though the reference
// deployment drives it from a single polling loop.
type Pipeline struct {
	mu       sync.Mutex
	cfg      Config
	allowed  map[models.Action]struct{}
	notifier Notifier
	recorder Recorder
	now      func() time.Time

	cooldowns map[string]time.Time

	quotaDate     string // "2006-01-02" in UTC
	sentToday     int
	quotaNotified bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. recorder may be nil to disable the audit log.
func New(cfg Config, notifier Notifier, recorder Recorder, opts ...Option) *Pipeline {
	allowed := make(map[models.Action]struct{}, len(cfg.AllowedActions))
	for _, a := range cfg.AllowedActions {
		allowed[models.NormalizeAction(a)] = struct{}{}
	}
	p := &Pipeline{
		cfg:       cfg,
		allowed:   allowed,
		notifier:  notifier,
		recorder:  recorder,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Score is the composite ranking score: edge percentage plus a confidence
// bonus (HIGH 20, MEDIUM 10) plus an urgency bonus for closing-soon
// signals that peaks at 15 under one hour remaining.
func Score(sig *models.Signal) float64 {
	score := sig.EdgePct()
	switch sig.Confidence {
	case models.ConfidenceHigh:
		score += 20
	case models.ConfidenceMedium:
		score += 10
	}
	if d, ok := sig.Details.(models.ClosingSoonDetails); ok {
		score += math.Max(0, 15-d.HoursUntilClose/3)
	}
	return score
}

// Rank returns the signals sorted by descending Score. The sort is stable,
// so equal scores keep arrival order.
func Rank(signals []models.Signal) []models.Signal {
	ranked := make([]models.Signal, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(&ranked[i]) > Score(&ranked[j])
	})
	return ranked
}

// passesQuality applies the confidence floor and the action allow-list.
func (p *Pipeline) passesQuality(sig *models.Signal) bool {
	if sig.Confidence.Rank() < p.cfg.MinConfidence.Rank() {
		return false
	}
	_, ok := p.allowed[models.NormalizeAction(string(sig.Action))]
	return ok
}

func (p *Pipeline) onCooldownLocked(key string) bool {
	last, ok := p.cooldowns[key]
	if !ok {
		return false
	}
	return p.now().Sub(last) < p.cfg.Cooldown
}

// resetQuotaLocked rolls the counters the first time any operation
// observes a new UTC date.
func (p *Pipeline) resetQuotaLocked() {
	today := p.now().UTC().Format("2006-01-02")
	if p.quotaDate != today {
		if p.quotaDate != "" {
			logger.Info("New UTC day (%s): daily alert counter reset", today)
		}
		p.quotaDate = today
		p.sentToday = 0
		p.quotaNotified = false
	}
}

func (p *Pipeline) slotsRemainingLocked() int {
	if p.cfg.MaxPerDay <= 0 {
		return unlimitedSlots
	}
	if left := p.cfg.MaxPerDay - p.sentToday; left > 0 {
		return left
	}
	return 0
}

// SlotsRemaining reports how many more dispatches today's quota allows.
func (p *Pipeline) SlotsRemaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetQuotaLocked()
	return p.slotsRemainingLocked()
}

// QuotaReached reports whether the daily cap is exhausted. The first
// observation of the exhausted state in a given day emits the one-time
// quota notice.
func (p *Pipeline) QuotaReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetQuotaLocked()
	if p.slotsRemainingLocked() > 0 {
		return false
	}
	p.notifyQuotaLocked()
	return true
}

// notifyQuotaLocked sends the quota notice once per UTC day.
func (p *Pipeline) notifyQuotaLocked() {
	if p.quotaNotified {
		return
	}
	p.quotaNotified = true
	logger.Info("Daily cap of %d reached: no more alerts today", p.cfg.MaxPerDay)
	if err := p.notifier.Send(QuotaReachedMessage(p.cfg.MaxPerDay)); err != nil {
		logger.Warn("Failed to send quota notice: %v", err)
	}
}

// gcCooldownsLocked drops entries older than twice the cooldown window.
func (p *Pipeline) gcCooldownsLocked() {
	now := p.now()
	for key, last := range p.cooldowns {
		if now.Sub(last) > 2*p.cfg.Cooldown {
			delete(p.cooldowns, key)
		}
	}
}

// Preview returns the signals Dispatch would send right now, ranked and
// truncated to the remaining quota, without sending anything or mutating
// cooldown or quota state.
func (p *Pipeline) Preview(signals []models.Signal) []models.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetQuotaLocked()

	var eligible []models.Signal
	for i := range signals {
		sig := &signals[i]
		if p.passesQuality(sig) && !p.onCooldownLocked(sig.IdentityKey()) {
			eligible = append(eligible, *sig)
		}
	}
	ranked := Rank(eligible)
	if slots := p.slotsRemainingLocked(); slots < len(ranked) {
		ranked = ranked[:slots]
	}
	return ranked
}

// Dispatch runs one arbitration cycle over freshly detected signals:
// quality filter, cooldown filter, rank, truncate to the remaining daily
// slots, then send in ranked order. Each successful send records the
// cooldown and increments the daily counter; the quota is re-checked after
// every send. Returns the number of signals actually delivered.
func (p *Pipeline) Dispatch(signals []models.Signal) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetQuotaLocked()
	defer p.gcCooldownsLocked()

	var qualified []models.Signal
	for i := range signals {
		if p.passesQuality(&signals[i]) {
			qualified = append(qualified, signals[i])
		}
	}

	var fresh []models.Signal
	for i := range qualified {
		if !p.onCooldownLocked(qualified[i].IdentityKey()) {
			fresh = append(fresh, qualified[i])
		}
	}

	ranked := Rank(fresh)
	slots := p.slotsRemainingLocked()

	logger.Info("Alert pipeline: %d raw, %d qualified, %d fresh, %d slot(s) remaining",
		len(signals), len(qualified), len(fresh), slots)

	if slots == 0 {
		p.notifyQuotaLocked()
		return 0
	}

	if slots < len(ranked) {
		ranked = ranked[:slots]
	}

	sent := 0
	for i := range ranked {
		sig := &ranked[i]
		text := FormatSignal(sig, p.sentToday+1, p.cfg.MaxPerDay)
		if err := p.notifier.Send(text); err != nil {
			// Undelivered: no cooldown, no counter. The next cycle may
			// retry if the signal still qualifies.
			logger.Error("Failed to send alert %s: %v", sig.IdentityKey(), err)
			continue
		}

		p.cooldowns[sig.IdentityKey()] = p.now()
		p.sentToday++
		sent++
		logger.Info("Sent alert %d today: [%s] %s | score=%.1f",
			p.sentToday, sig.Type, sig.Action, Score(sig))

		if p.recorder != nil {
			if err := p.recorder.RecordDispatch(sig, Score(sig), p.now()); err != nil {
				logger.Warn("Failed to record dispatch %s: %v", sig.IdentityKey(), err)
			}
		}

		if p.slotsRemainingLocked() == 0 {
			break
		}
	}
	return sent
}
