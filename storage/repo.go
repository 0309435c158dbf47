package storage

import (
	"context"

	"github.com/gigan-store/session-client/sessions"
)

// Event reports that another tab changed the durable session value.
// Old and New are the raw stored values; Message is New decoded.
type Event struct {
	Key     string
	Old     []byte
	New     []byte
	Message sessions.Message
}

// Repo is the durable medium mirroring the session. It outlives a single tab
// and is shared by every tab, which treat it as a broadcast channel: each
// writes its own changes and watches for everyone else's.
type Repo interface {
	// Load returns the stored value, cleared if nothing is stored.
	Load(ctx context.Context) (sessions.Message, error)

	// Save replaces the stored value. The message's Origin is set to Origin().
	Save(ctx context.Context, m sessions.Message) error

	// Watch streams changes written by other tabs until ctx is done.
	// Changes written through this Repo are never delivered to it.
	Watch(ctx context.Context) (<-chan Event, error)

	// Origin identifies this tab's writes.
	Origin() string

	Close() error
}
