package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fzkn4/gate-security/internal/api"
	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/repository/memory"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/fzkn4/gate-security/internal/service"
	"github.com/fzkn4/gate-security/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every identity the test context seeds
const TestPassword = "testpassword"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Store       *memory.Store
	Service     *service.DefaultService
	AdminID     int64
	AdminJWT    string
	TestUserID  int64
	TestUserJWT string
}

// SetupTestContext wires the API over an in-memory store and seeds one admin
// and one regular user, both logged in
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.New()
	svc := service.NewDefaultService(store, scancode.NewQREncoder(64), session.NewMemoryRevoker(), service.Options{
		JWTSecret:  "test-secret-key-0123456789",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		Logger:     logger,
	})

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.NewHandler(svc, logger).SetupRoutes(router)

	tc := &TestContext{
		Router:  router,
		Store:   store,
		Service: svc,
	}
	tc.AdminID = CreateIdentity(t, store, "admin", models.RoleAdmin)
	tc.AdminJWT = Login(t, router, "admin", TestPassword)
	tc.TestUserID = CreateIdentity(t, store, "testuser", models.RoleUser)
	tc.TestUserJWT = Login(t, router, "testuser", TestPassword)
	return tc
}

// CreateIdentity stores an identity with TestPassword directly, bypassing policy
func CreateIdentity(t *testing.T, store *memory.Store, login string, role models.Role) int64 {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	identity := &models.Identity{
		Login:        login,
		Email:        login + "@example.com",
		PasswordHash: string(hashedPassword),
		FullName:     "Test " + login,
		Role:         role,
	}
	require.NoError(t, store.CreateIdentity(context.Background(), identity), "Failed to create test identity")
	return identity.ID
}

// Login authenticates through the API and returns the access token
func Login(t *testing.T, r http.Handler, login, password string) string {
	t.Helper()

	w := PerformRequest(r, http.MethodPost, "/api/auth/login", models.LoginRequest{
		Login:    login,
		Password: password,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AuthResponse
	DecodeJSON(t, w, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals the recorded response body into v
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
