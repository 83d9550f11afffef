package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbrook/beacon/internal/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrUsersExist         = errors.New("users already exist")
)

// dummyHash keeps failed lookups doing a full bcrypt comparison.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// User is a persisted account record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore is the interface for user persistence.
type UserStore interface {
	CreateUser(user User) error
	GetUserByUsername(username string) (*User, error)
	UserCount() (int, error)
	// CreateFirstUser atomically creates a user only if no users exist.
	// Returns ErrUsersExist otherwise (race protection).
	CreateFirstUser(user User) error
}

// Service issues and verifies bearer tokens against the user store.
type Service struct {
	Users    UserStore
	Log      *slog.Logger
	Secret   []byte
	TokenTTL time.Duration

	rateLimiter *RateLimiter
	now         func() time.Time
}

// ServiceConfig holds the configuration for creating a Service.
type ServiceConfig struct {
	Users    UserStore
	Log      *slog.Logger
	Secret   []byte
	TokenTTL time.Duration
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		Users:       cfg.Users,
		Log:         cfg.Log,
		Secret:      cfg.Secret,
		TokenTTL:    cfg.TokenTTL,
		rateLimiter: NewRateLimiter(),
		now:         time.Now,
	}
}

// Login authenticates a username/password pair and returns a signed bearer
// token plus the identity it carries. Attempts are rate limited per IP.
func (s *Service) Login(username, password, ip string) (token string, id Identity, expiresAt time.Time, err error) {
	if !s.rateLimiter.Allow(ip) {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		s.Log.Warn("login rate limited", "ip", ip)
		return "", Identity{}, time.Time{}, ErrRateLimited
	}

	user, err := s.Users.GetUserByUsername(username)
	if err != nil || user == nil {
		// Burn a comparison anyway so user enumeration can't be timed.
		CheckPassword(dummyHash, password)
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return "", Identity{}, time.Time{}, ErrInvalidCredentials
	}
	if !CheckPassword(user.PasswordHash, password) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return "", Identity{}, time.Time{}, ErrInvalidCredentials
	}

	s.rateLimiter.Reset(ip)

	id = Identity{
		SubjectID:   user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	now := s.now()
	expiresAt = now.Add(s.TokenTTL)
	token, err = SignToken(s.Secret, id, s.TokenTTL, now)
	if err != nil {
		return "", Identity{}, time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return token, id, expiresAt, nil
}

// Verify validates a bearer token and returns the identity it carries.
func (s *Service) Verify(token string) (*Identity, error) {
	return VerifyToken(s.Secret, token)
}

// Bootstrap creates the initial admin user if no users exist yet.
// A second concurrent bootstrap is a no-op.
func (s *Service) Bootstrap(username, password string) error {
	count, err := s.Users.UserCount()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := ValidatePassword(password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	id, err := GenerateUserID()
	if err != nil {
		return err
	}
	user := User{
		ID:           id,
		Username:     username,
		DisplayName:  username,
		Role:         "admin",
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.Users.CreateFirstUser(user); err != nil {
		if errors.Is(err, ErrUsersExist) {
			return nil
		}
		return fmt.Errorf("create admin user: %w", err)
	}
	s.Log.Info("bootstrapped admin user", "username", username)
	return nil
}

// GenerateUserID creates a random 16-char hex user ID.
func GenerateUserID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
