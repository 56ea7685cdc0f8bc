package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Claims are carried by every bearer token. The role is informational; the
// current role is always re-read from storage.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Login verifies the credential and issues a bearer token. Unknown logins and
// wrong credentials produce the same error.
func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	identity, err := s.repo.GetIdentityByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error getting identity: %w", err)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	// Generate JWT token
	token, err := s.generateJWT(identity)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"identity_id": identity.ID,
		"role":        identity.Role,
	}).Info("login succeeded")

	return &models.AuthResponse{
		Status:      "success",
		AccessToken: token,
		ExpiresIn:   int(s.tokenDuration.Seconds()),
		User:        identity,
	}, nil
}

// Authenticate resolves a bearer token to the identity as currently stored
func (s *DefaultService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.parseJWT(ctx, token)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", models.ErrInvalidCredentials)
	}

	identity, err := s.repo.GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: identity no longer exists", models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("error getting identity: %w", err)
	}

	return identity, nil
}

// Logout revokes the presented token until it expires
func (s *DefaultService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseJWT(ctx, token)
	if err != nil {
		return err
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}
	return nil
}

func (s *DefaultService) generateJWT(identity *models.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *DefaultService) parseJWT(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrInvalidCredentials)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no id", models.ErrInvalidCredentials)
	}

	revoked, err := s.revoker.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking token: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", models.ErrInvalidCredentials)
	}

	return claims, nil
}
