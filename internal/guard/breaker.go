package guard

import "time"

// BreakerStatus is the position of a circuit breaker.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"
	BreakerOpen     BreakerStatus = "open"
	BreakerHalfOpen BreakerStatus = "half_open"
)

// BreakerState is a copy of the circuit breaker of one path.
type BreakerState struct {
	Status       BreakerStatus `json:"status"`
	FailureCount int           `json:"failure_count"`
	SuccessCount int           `json:"success_count"`
	LastFailure  time.Time     `json:"last_failure"`
	LastSuccess  time.Time     `json:"last_success"`
	OpenedAt     time.Time     `json:"opened_at"`
}

// breaker is a three state circuit breaker. It is guarded by Guard.mu.
//
// FailureCount counts consecutive failed sessions, not attempts. While
// HalfOpen exactly one trial session is admitted.
type breaker struct {
	state BreakerState
	trial bool // a HalfOpen trial is in progress
}

func newBreaker() *breaker {
	return &breaker{state: BreakerState{Status: BreakerClosed}}
}

// admit reports whether a session may run now, moving Open to HalfOpen once
// the cool-down elapsed.
func (b *breaker) admit(now time.Time, cfg PathConfig) bool {
	switch b.state.Status {
	case BreakerOpen:
		if !cfg.AutoRecovery || now.Sub(b.state.OpenedAt) < cfg.BreakerCooldown {
			return false
		}
		b.state.Status = BreakerHalfOpen
		b.trial = true
		return true
	case BreakerHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	default:
		return true
	}
}

// isOpen reports whether a session would currently be rejected, without
// changing the state.
func (b *breaker) isOpen(now time.Time, cfg PathConfig) bool {
	switch b.state.Status {
	case BreakerOpen:
		return !cfg.AutoRecovery || now.Sub(b.state.OpenedAt) < cfg.BreakerCooldown
	case BreakerHalfOpen:
		return b.trial
	default:
		return false
	}
}

func (b *breaker) success(now time.Time) {
	b.state.LastSuccess = now
	if b.state.Status == BreakerHalfOpen {
		b.state = BreakerState{Status: BreakerClosed, LastSuccess: now, LastFailure: b.state.LastFailure}
		b.trial = false
		return
	}

	b.state.SuccessCount++
	b.state.FailureCount = 0
}

// failure records a failed session. It reports whether the breaker opened.
func (b *breaker) failure(now time.Time, cfg PathConfig) bool {
	b.state.LastFailure = now

	if b.state.Status == BreakerHalfOpen {
		b.state.Status = BreakerOpen
		b.state.OpenedAt = now
		b.trial = false
		return true
	}

	b.state.FailureCount++
	if b.state.FailureCount >= max(cfg.BreakerThreshold, 1) {
		b.state.Status = BreakerOpen
		b.state.OpenedAt = now
		b.state.FailureCount = 0
		return true
	}
	return false
}

// release ends a HalfOpen trial that finished without an outcome, such as a
// session cancelled by its caller.
func (b *breaker) release() {
	b.trial = false
}

func (b *breaker) reset() {
	b.state = BreakerState{Status: BreakerClosed, LastFailure: b.state.LastFailure, LastSuccess: b.state.LastSuccess}
	b.trial = false
}
