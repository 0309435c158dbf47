package users

import (
	"strings"
	"time"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/sessions"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string        `json:"id,omitempty"`         // Unique identifier for the user
	Username     string        `json:"username,omitempty"`   // Unique login name
	Name         string        `json:"name,omitempty"`       // Display name
	PasswordHash string        `json:"-"`                    // Hashed version of the user's password - never serialize
	Role         sessions.Role `json:"role,omitempty"`       // Backoffice role
	LastLogin    time.Time     `json:"last_login,omitempty"` // Last time the user logged in
	Blocked      bool          `json:"blocked,omitempty"`    // Blocked from logging in
}

// Seed is a user created at startup with a plain text password.
type Seed struct {
	Username string
	Name     string
	Password string
	Role     sessions.Role
}

// DemoUsers are the accounts the development backend starts with.
var DemoUsers = []Seed{
	{Username: "sowner", Name: "Store Owner", Password: "s@123", Role: sessions.RoleOwner},
	{Username: "sstaff", Name: "Store Staff", Password: "s@123", Role: sessions.RoleStaff},
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NormalizeUsername is the form usernames are stored and looked up in.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Authenticate checks a username and password against repo. Unknown users and
// wrong passwords give the same error.
func Authenticate(repo UserRepo, username, password string) (*User, error) {
	user, err := repo.GetByUsername(NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Blocked || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

// NewFromSeed hashes the seed's password into a User.
func NewFromSeed(s Seed) (*User, error) {
	if !s.Role.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidRole, "user %q", s.Username)
	}
	hash, err := HashPassword(s.Password)
	if err != nil {
		return nil, errors.Wrapf(err, "hashing password for %q", s.Username)
	}
	return &User{
		Username:     NormalizeUsername(s.Username),
		Name:         s.Name,
		PasswordHash: hash,
		Role:         s.Role,
	}, nil
}
