// Package redisstore mirrors the session in a Redis key and announces every
// change on a pub/sub channel, so tabs on different machines stay in sync.
package redisstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	interrors "github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/storage"
)

const DefaultKey = "gigan:session"

// envelope is published on the change channel for every write.
type envelope struct {
	Key string `json:"key"`
	Old []byte `json:"old,omitempty"`
	New []byte `json:"new"`
}

var _ storage.Repo = (*Store)(nil)

type Store struct {
	client  *redis.Client
	key     string
	origin  string
	logger  zerolog.Logger
	lock    sync.Mutex
	pubsubs []*redis.PubSub
	closed  bool
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Dial connects to addr and verifies the connection with a PING.
func Dial(ctx context.Context, addr, password string, options ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redisstore.Dial %s", addr)
	}
	return New(client, options...), nil
}

// New wraps an existing client. The store owns the client from here on.
func New(client *redis.Client, options ...Option) *Store {
	s := &Store{
		client: client,
		key:    DefaultKey,
		origin: uuid.New().String(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "redisstore").Str("key", s.key).Logger()
	return s
}

func (s *Store) channel() string {
	return s.key + ":events"
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Load(ctx context.Context) (sessions.Message, error) {
	if s.isClosed() {
		return sessions.Message{}, interrors.ErrStorageClosed
	}
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return sessions.Cleared(), nil
	}
	if err != nil {
		return sessions.Message{}, errors.Wrap(err, "redisstore.Load Get")
	}

	m, legacy, err := sessions.DecodeMessage(raw)
	if err != nil {
		return sessions.Message{}, err
	}
	if legacy {
		s.logger.Info().Msg("Rewriting legacy session value")
		if err := s.Save(ctx, m); err != nil {
			return sessions.Message{}, err
		}
	}
	return m, nil
}

// Save swaps the stored value and publishes the old and new values.
func (s *Store) Save(ctx context.Context, m sessions.Message) error {
	if s.isClosed() {
		return interrors.ErrStorageClosed
	}
	m.Origin = s.origin
	raw, err := sessions.EncodeMessage(m)
	if err != nil {
		return err
	}

	old, err := s.client.SetArgs(ctx, s.key, raw, redis.SetArgs{Get: true}).Result()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "redisstore.Save Set")
	}

	payload, err := json.Marshal(envelope{Key: s.key, Old: []byte(old), New: raw})
	if err != nil {
		return errors.Wrap(err, "redisstore.Save Marshal")
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		return errors.Wrap(err, "redisstore.Save Publish")
	}
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan storage.Event, error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil, interrors.ErrStorageClosed
	}
	pubsub := s.client.Subscribe(ctx, s.channel())
	s.pubsubs = append(s.pubsubs, pubsub)
	s.lock.Unlock()

	// Wait for the subscription confirmation so no write is missed after Watch returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "redisstore.Watch Subscribe")
	}

	out := make(chan storage.Event, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					s.logger.Warn().Err(err).Msg("Ignoring malformed session change")
					continue
				}
				m, _, err := sessions.DecodeMessage(env.New)
				if err != nil {
					s.logger.Warn().Err(err).Msg("Ignoring unreadable session change")
					continue
				}
				if m.Origin == s.origin {
					continue
				}
				select {
				case out <- storage.Event{Key: env.Key, Old: env.Old, New: env.New, Message: m}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, p := range s.pubsubs {
		_ = p.Close()
	}
	s.pubsubs = nil
	return s.client.Close()
}

func (s *Store) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}
