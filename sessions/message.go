package sessions

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/token"
)

// MessageType tags what a durable write means to the other tabs.
type MessageType string

const (
	MessageUpdated MessageType = "session-updated"
	MessageCleared MessageType = "session-cleared"
)

// Message is the value mirrored in durable storage. It doubles as the
// broadcast payload other tabs receive when it changes.
type Message struct {
	Type   MessageType `json:"type"`
	Token  string      `json:"token,omitempty"`
	Role   Role        `json:"role,omitempty"`
	Origin string      `json:"origin,omitempty"` // ID of the tab that wrote it
	At     time.Time   `json:"at,omitzero"`
}

func Updated(s Session) Message {
	return Message{Type: MessageUpdated, Token: s.Token, Role: s.Role}
}

func Cleared() Message {
	return Message{Type: MessageCleared}
}

// Session returns the session the message describes. A cleared message, or
// one without a token, describes no session.
func (m Message) Session() Session {
	if m.Type != MessageUpdated || m.Token == "" {
		return Session{}
	}
	return Session{Token: m.Token, Role: m.Role}
}

func EncodeMessage(m Message) ([]byte, error) {
	if m.Type != MessageUpdated && m.Type != MessageCleared {
		return nil, errors.Wrapf(errors.ErrInvalidMessage, "type %q", m.Type)
	}
	if m.Type == MessageCleared {
		m.Token, m.Role = "", ""
	}
	return json.Marshal(m)
}

// legacyPersisted is the shape written by the previous front end's persisted
// state store: {"state":{"token":"...","role":"OWNER"},"version":0}.
type legacyPersisted struct {
	State *struct {
		Token *string `json:"token"`
		Role  *string `json:"role"`
	} `json:"state"`
}

// DecodeMessage parses a durable value. Besides the canonical Message it
// accepts the legacy shapes still found on disk: the persisted state store
// object, a bare token, or "Bearer <token>". legacy reports that the value
// should be rewritten canonically. An empty value decodes as cleared.
func DecodeMessage(raw []byte) (m Message, legacy bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Cleared(), false, nil
	}

	if trimmed[0] != '{' {
		// A JSON string or a raw token line.
		value := string(trimmed)
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			value = s
		}
		value = token.StripBearer(value)
		if value == "" || strings.ContainsAny(value, " \t\n{}") {
			return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "unrecognised value")
		}
		return Message{Type: MessageUpdated, Token: value, Role: roleFromClaims(value)}, true, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "decode: %v", err)
	}

	if _, ok := probe["type"]; ok {
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "decode: %v", err)
		}
		switch m.Type {
		case MessageCleared:
			m.Token, m.Role = "", ""
		case MessageUpdated:
			if m.Token == "" {
				return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "updated message without token")
			}
		default:
			return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "type %q", m.Type)
		}
		return m, false, nil
	}

	if _, ok := probe["state"]; ok {
		var lp legacyPersisted
		if err := json.Unmarshal(trimmed, &lp); err != nil {
			return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "decode legacy: %v", err)
		}
		if lp.State == nil || lp.State.Token == nil || *lp.State.Token == "" {
			return Cleared(), true, nil
		}
		m = Message{Type: MessageUpdated, Token: token.StripBearer(*lp.State.Token)}
		if lp.State.Role != nil {
			if r, err := ParseRole(*lp.State.Role); err == nil {
				m.Role = r
			}
		}
		if m.Role == "" {
			m.Role = roleFromClaims(m.Token)
		}
		return m, true, nil
	}

	return Message{}, false, errors.Wrapf(errors.ErrInvalidMessage, "unrecognised object")
}

// roleFromClaims recovers the role of a legacy value stored without one.
func roleFromClaims(raw string) Role {
	claim, ok := token.StringClaim(raw, "role")
	if !ok {
		return ""
	}
	r, err := ParseRole(claim)
	if err != nil {
		return ""
	}
	return r
}
