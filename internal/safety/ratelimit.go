package safety

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const loopPrecursorWindow = 5 * time.Second

// rateState tracks per-session call counters and the loop-precursor
// dedup window, guarded by its own mutex per spec §5 ("the safety
// gateway is the sole writer to the audit buffer and rate-limit
// counters... serialized by the gateway's internal discipline").
// golang.org/x/time/rate backs the underlying limiter primitive; the
// turn/session counters and loop-precursor map are plain counters since
// they are reset/read under the same lock rather than needing a token
// bucket's smoothing.
type rateState struct {
	mu sync.Mutex

	turnCount    int
	sessionCount int

	// seen maps a canonical (tool, args-hash) signature to the times it
	// was last observed, for the loop-precursor check.
	seen map[string][]time.Time

	limiter *rate.Limiter
}

func newRateState() *rateState {
	return &rateState{
		seen:    make(map[string][]time.Time),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func (s *rateState) resetTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnCount = 0
}

// checkAndRecord increments counters and returns whether the call should
// be denied for rate-limit reasons: turn/session ceiling exceeded, or the
// identical signature seen at least twice within the loop-precursor
// window.
func (s *rateState) checkAndRecord(signature string, maxPerTurn, maxPerSession int) (deny bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxPerTurn > 0 && s.turnCount >= maxPerTurn {
		return true, "max tool calls per turn exceeded"
	}
	if maxPerSession > 0 && s.sessionCount >= maxPerSession {
		return true, "max tool calls per session exceeded"
	}

	now := time.Now()
	times := s.seen[signature]
	cutoff := now.Add(-loopPrecursorWindow)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.seen[signature] = kept
	if len(kept) >= 3 {
		// two prior occurrences plus this one within the window
		return true, "identical call repeated within loop-precursor window"
	}

	s.turnCount++
	s.sessionCount++
	return false, ""
}
