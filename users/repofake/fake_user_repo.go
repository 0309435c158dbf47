package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/users"
	"github.com/google/uuid"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIds map[string]string // username to user id
	lock        sync.RWMutex
	nowFunc     func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIds: make(map[string]string),
		nowFunc:     time.Now,
	}
}

// NewSeededUserRepo returns a repo holding the given users.
func NewSeededUserRepo(seeds ...users.Seed) (*FakeUserRepo, error) {
	ur := NewFakeUserRepo()
	for _, s := range seeds {
		u, err := users.NewFromSeed(s)
		if err != nil {
			return nil, err
		}
		if err := ur.Upsert(u); err != nil {
			return nil, err
		}
	}
	return ur, nil
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Username = users.NormalizeUsername(user.Username)
	ur.users[user.ID] = user
	ur.usernameIds[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[users.NormalizeUsername(username)]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, errors.ErrUserNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) SetLastLogin(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.ErrUserNotFound
	}
	user.LastLogin = ur.nowFunc()
	return nil
}
