package auth

import (
	"github.com/gigan-store/session-client/storage"
)

// HandleEvent applies a change another tab wrote to storage. It never writes
// storage itself, so tabs cannot echo each other's changes back and forth.
// Delivering the same event twice leaves the same state as delivering it once.
func (m *Manager) HandleEvent(ev storage.Event) {
	next := ev.Message.Session()

	m.lock.Lock()
	if next == m.session {
		m.lock.Unlock()
		return
	}

	had := !m.session.Empty()
	m.stopTimersLocked()
	m.gen++

	var eff effects
	switch exp, reason, ok := m.admissible(next); {
	case next.Empty():
		eff = m.clearLocked(ReasonRemote, false)
		eff.notifyAndRedirect(ReasonRemote)
		m.logger.Info().Str("origin", ev.Message.Origin).Msg("logged out from another tab")
	case !ok:
		eff = m.clearLocked(reason, false)
		if had {
			eff.notifyAndRedirect(reason)
		}
		m.logger.Warn().Str("reason", string(reason)).Str("origin", ev.Message.Origin).Msg("another tab stored an unusable session")
	default:
		m.session = next
		eff = m.armLocked(exp, false)
		eff.publish = true
		m.metrics.Adopted()
		m.logger.Info().Str("role", string(next.Role)).Time("expires", exp).Str("origin", ev.Message.Origin).Msg("adopted session from another tab")
	}
	m.lock.Unlock()

	m.apply(eff)
}

