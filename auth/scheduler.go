package auth

import (
	"fmt"
	"math"
	"time"

	"github.com/gigan-store/session-client/token"
)

// Lead times for the pre-expiry notice. The longest one that still fits in
// the remaining lifetime is used.
var warningLeads = []time.Duration{5 * time.Minute, time.Minute}

// armLocked starts the single logout timer for the current session, plus the
// optional warning timer. A deadline that has already passed logs out
// synchronously instead of arming a zero length timer; persist says whether
// that logout writes the cleared state.
func (m *Manager) armLocked(exp time.Time, persist bool) effects {
	m.stopTimersLocked()

	delay := exp.Sub(m.clock.Now())
	if delay <= 0 {
		eff := m.clearLocked(ReasonExpired, persist)
		eff.notifyAndRedirect(ReasonExpired)
		return eff
	}

	gen := m.gen
	m.logoutTimer = m.clock.AfterFunc(delay, func() { m.onExpiry(gen) })

	if m.expiryWarning {
		for _, lead := range warningLeads {
			if delay > lead {
				m.warnTimer = m.clock.AfterFunc(delay-lead, func() { m.onWarning(gen) })
				break
			}
		}
	}
	return effects{}
}

func (m *Manager) stopTimersLocked() {
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
}

// onExpiry runs when the logout timer elapses. A timer belonging to an older
// session is ignored, and one that fires before the deadline re-arms for the
// rest, so the session never ends early.
func (m *Manager) onExpiry(gen uint64) {
	m.lock.Lock()
	if gen != m.gen || m.session.Empty() {
		m.lock.Unlock()
		return
	}
	m.logoutTimer = nil

	exp, ok := token.ExpiresAt(m.session.Token)
	if ok {
		if left := exp.Sub(m.clock.Now()); left > 0 {
			m.logoutTimer = m.clock.AfterFunc(left, func() { m.onExpiry(gen) })
			m.lock.Unlock()
			return
		}
	}

	eff := m.clearLocked(ReasonExpired, true)
	eff.notifyAndRedirect(ReasonExpired)
	m.lock.Unlock()

	m.logger.Info().Msg("session expired")
	m.apply(eff)
}

func (m *Manager) onWarning(gen uint64) {
	m.lock.Lock()
	if gen != m.gen || m.session.Empty() {
		m.lock.Unlock()
		return
	}
	m.warnTimer = nil
	exp, ok := token.ExpiresAt(m.session.Token)
	now := m.clock.Now()
	m.lock.Unlock()

	if !ok || !now.Before(exp) {
		return
	}
	m.notifier.Notify(NoticeWarning, ExpiryWarning(exp.Sub(now)))
}

// ExpiryWarning is the notice shown when left remains before expiry.
func ExpiryWarning(left time.Duration) string {
	minutes := int(math.Round(left.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Your session will end in %d %s.", minutes, unit)
}

// FormatRemaining renders d as m:ss, clamping negative values to zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
