package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnsureBootstrapAdmin creates the first admin when none exists. An empty
// password is replaced by a generated one that is logged once. The account
// must change its credential before it can do anything else. It returns nil
// when an admin already exists.
func (s *DefaultService) EnsureBootstrapAdmin(ctx context.Context, login, email, password string) (*models.Identity, error) {
	admins, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting admins: %w", err)
	}
	if admins > 0 {
		return nil, nil
	}

	generated := password == ""
	if generated {
		password = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	identity := &models.Identity{
		Login:                strings.TrimSpace(login),
		Email:                strings.TrimSpace(email),
		FullName:             "Administrator",
		Role:                 models.RoleAdmin,
		MustChangeCredential: true,
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	identity.PasswordHash = hash

	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("error creating bootstrap admin: %w", err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"identity_id": identity.ID,
		"username":    identity.Login,
	})
	if generated {
		entry = entry.WithField("password", password)
	}
	entry.Warn("bootstrap admin created; change the password on first login")

	return identity, nil
}
