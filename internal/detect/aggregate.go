package detect

import (
	"time"

	"github.com/quantfold/polyalert/internal/logger"
	"github.com/quantfold/polyalert/internal/models"
)

// RunAll runs the event-level detector once per event and the four
// market-level detectors once per tradeable market, in arrival order.
// Signals whose identity key was already produced earlier in the same
// cycle are dropped (first occurrence wins).
func RunAll(events []models.Event, cfg Config, now time.Time) []models.Signal {
	var signals []models.Signal
	seen := make(map[string]struct{})

	keep := func(sig *models.Signal) {
		if sig == nil {
			return
		}
		key := sig.IdentityKey()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		signals = append(signals, *sig)
	}

	for i := range events {
		ev := &events[i]

		keep(cfg.Mispricing(ev))

		for j := range ev.Markets {
			m := &ev.Markets[j]
			if !m.Tradeable() {
				continue
			}
			keep(cfg.OddsShift(m, ev.Slug))
			keep(cfg.VolumeSpike(m, ev.Slug))
			keep(cfg.ClosingSoon(m, ev.Slug, now))
			keep(cfg.NewMarket(m, ev.Slug, now))
		}
	}

	logger.Debug("Detectors produced %d signals this cycle", len(signals))
	return signals
}
