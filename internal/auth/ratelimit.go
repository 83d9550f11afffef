package auth

import (
	"sync"
	"time"
)

const (
	maxLoginAttempts = 5 // per IP within the window
	loginWindow      = 5 * time.Minute
	loginCooldown    = 15 * time.Minute
)

type loginAttempt struct {
	count     int
	firstAt   time.Time
	blockedAt time.Time // non-zero once the IP is blocked
}

// RateLimiter tracks per-IP login attempt rates.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempt
	now      func() time.Time
}

// NewRateLimiter creates a new login rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		attempts: make(map[string]*loginAttempt),
		now:      time.Now,
	}
}

// Allow checks if a login attempt from the given IP is allowed.
// Returns false if the IP is rate-limited.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	a, ok := rl.attempts[ip]
	if !ok {
		rl.attempts[ip] = &loginAttempt{count: 1, firstAt: now}
		return true
	}

	// Blocked IPs stay blocked until the cooldown expires.
	if !a.blockedAt.IsZero() {
		if now.Before(a.blockedAt.Add(loginCooldown)) {
			return false
		}
		a.count = 1
		a.firstAt = now
		a.blockedAt = time.Time{}
		return true
	}

	// Reset the window once it has expired.
	if now.Sub(a.firstAt) > loginWindow {
		a.count = 1
		a.firstAt = now
		return true
	}

	a.count++
	if a.count > maxLoginAttempts {
		a.blockedAt = now
		return false
	}
	return true
}

// Reset clears the attempt record for an IP after a successful login.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}
