// Package credstore keeps the Strava OAuth credentials. Strava rotates the
// refresh token on every exchange, so the latest pair must survive restarts
// when a persistent store is configured.
package credstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("credentials not found")

// Credentials is the mutable token state of one Strava client.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Store loads and saves one credential set.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	// Seed stores creds only when nothing is stored yet, so a previously
	// rotated refresh token wins over the configured one.
	Seed(ctx context.Context, creds Credentials) error
}

// Memory is a process-lifetime Store.
type Memory struct {
	mu     sync.RWMutex
	creds  Credentials
	stored bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.stored {
		return Credentials{}, ErrNotFound
	}
	return m.creds, nil
}

func (m *Memory) Save(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.stored = true
	return nil
}

func (m *Memory) Seed(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stored {
		m.creds = creds
		m.stored = true
	}
	return nil
}
