package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/repository/memory"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/fzkn4/gate-security/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "password123"

// testClock is a settable clock shared by a test and the service
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingEncoder struct{}

func (failingEncoder) PNG(string) ([]byte, error) {
	return nil, errors.New("encoder offline")
}

type testEnv struct {
	svc   *DefaultService
	store *memory.Store
	clock *testClock
	admin *models.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithEncoder(t, scancode.NewQREncoder(64))
}

func newTestEnvWithEncoder(t *testing.T, encoder scancode.Encoder) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.New()
	clock := &testClock{now: time.Now().UTC()}
	svc := NewDefaultService(store, encoder, session.NewMemoryRevoker(), Options{
		JWTSecret:  "test-secret-key-0123456789",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		Clock:      clock.Now,
		Logger:     logger,
	})

	env := &testEnv{svc: svc, store: store, clock: clock}
	env.admin = env.seedIdentity(t, "admin", models.RoleAdmin)
	return env
}

// seedIdentity stores an identity directly, bypassing policy
func (e *testEnv) seedIdentity(t *testing.T, login string, role models.Role) *models.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	identity := &models.Identity{
		Login:        login,
		Email:        login + "@example.com",
		PasswordHash: string(hash),
		FullName:     "Full " + login,
		Role:         role,
	}
	require.NoError(t, e.store.CreateIdentity(context.Background(), identity))
	return identity
}

func (e *testEnv) createVehicle(t *testing.T, actor *models.Identity, plate string) *models.VehicleView {
	t.Helper()
	v, _, err := e.svc.CreateVehicle(context.Background(), actor, models.CreateVehicleRequest{
		Plate:    plate,
		Category: "car",
	})
	require.NoError(t, err)
	return v
}

func (e *testEnv) scan(t *testing.T, actor *models.Identity, payload string) *models.EventView {
	t.Helper()
	event, err := e.svc.Scan(context.Background(), actor, models.ScanRequest{Payload: payload})
	require.NoError(t, err)
	return event
}

func ptr[T any](v T) *T {
	return &v
}
