// Package filestore keeps the durable session mirror in a JSON file and turns
// changes made to it by other processes into storage events.
package filestore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	interrors "github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/storage"
)

// FileName is the canonical session file inside the store directory.
const FileName = "session.json"

// LegacyFileNames are migrated into FileName by Load, first match wins.
var LegacyFileNames = []string{"auth-storage", "token", "auth_token"}

var _ storage.Repo = (*Store)(nil)

type Store struct {
	dir     string
	path    string
	origin  string
	logger  zerolog.Logger
	lock    sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens the store in dir, creating the directory if needed.
func New(dir string, options ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "filestore.New MkdirAll")
	}
	s := &Store{
		dir:    dir,
		path:   filepath.Join(dir, FileName),
		origin: uuid.New().String(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "filestore").Str("path", s.path).Logger()
	return s, nil
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) (sessions.Message, error) {
	if s.isClosed() {
		return sessions.Message{}, interrors.ErrStorageClosed
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.migrateLegacyFile()
	}
	if err != nil {
		return sessions.Message{}, errors.Wrap(err, "filestore.Load ReadFile")
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

func (s *Store) migrateLegacyFile() (sessions.Message, error) {
	for _, name := range LegacyFileNames {
		legacyPath := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(legacyPath)
		if err != nil {
			continue
		}
		m, _, err := sessions.DecodeMessage(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Ignoring unreadable legacy session file")
			continue
		}
		if err := s.Save(context.Background(), m); err != nil {
			return sessions.Message{}, err
		}
		if err := os.Remove(legacyPath); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to remove migrated legacy session file")
		}
		s.logger.Info().Str("file", name).Msg("Migrated legacy session file")
		return m, nil
	}
	return sessions.Cleared(), nil
}

// Save writes the message atomically so readers never observe a partial file.
func (s *Store) Save(ctx context.Context, m sessions.Message) error {
	if s.isClosed() {
		return interrors.ErrStorageClosed
	}
	m.Origin = s.origin
	raw, err := sessions.EncodeMessage(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+FileName+".*")
	if err != nil {
		return errors.Wrap(err, "filestore.Save CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "filestore.Save Write")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "filestore.Save Chmod")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "filestore.Save Close")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "filestore.Save Rename")
	}
	return nil
}

// Watch observes the store directory. Every change to the session file is
// re-read; unchanged contents and this store's own writes are skipped, and a
// removed file is reported as a cleared session.
func (s *Store) Watch(ctx context.Context) (<-chan storage.Event, error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil, interrors.ErrStorageClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancels = append(s.cancels, cancel)
	s.lock.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "filestore.Watch NewWatcher")
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		cancel()
		return nil, errors.Wrap(err, "filestore.Watch Add")
	}

	last, _ := os.ReadFile(s.path)
	out := make(chan storage.Event, 16)

	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("File watcher error")
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != FileName {
					continue
				}
				raw, err := os.ReadFile(s.path)
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					s.logger.Warn().Err(err).Msg("Failed to read changed session file")
					continue
				}
				if bytes.Equal(raw, last) {
					continue
				}
				old := last
				last = raw

				m, _, err := sessions.DecodeMessage(raw)
				if err != nil {
					s.logger.Warn().Err(err).Msg("Ignoring unreadable session file change")
					continue
				}
				if m.Origin == s.origin {
					continue
				}

				select {
				case out <- storage.Event{Key: FileName, Old: old, New: raw, Message: m}:
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
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	return nil
}

func (s *Store) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}
