package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/policy"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	minLoginLength    = 3
	maxLoginLength    = 80
)

func (s *DefaultService) CreateIdentity(
	ctx context.Context,
	actor *models.Identity,
	req models.CreateIdentityRequest,
) (*models.Identity, error) {
	if err := policy.Authorize(actor, policy.KindIdentity, 0, policy.OpCreate); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	identity := &models.Identity{
		Login:    strings.TrimSpace(req.Login),
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	identity.PasswordHash = hash

	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("error creating identity: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"identity_id": identity.ID,
		"role":        identity.Role,
		"created_by":  actor.ID,
	}).Info("identity created")

	return identity, nil
}

func (s *DefaultService) GetIdentity(ctx context.Context, actor *models.Identity, id int64) (*models.Identity, error) {
	if err := policy.Authorize(actor, policy.KindIdentity, id, policy.OpRead); err != nil {
		return nil, err
	}

	identity, err := s.repo.GetIdentityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting identity: %w", err)
	}
	return identity, nil
}

func (s *DefaultService) ListIdentities(ctx context.Context, actor *models.Identity) ([]models.IdentityListItem, error) {
	if err := policy.AuthorizeList(actor, policy.KindIdentity); err != nil {
		return nil, err
	}

	identities, err := s.repo.ListIdentities(ctx, policy.Scope(actor))
	if err != nil {
		return nil, fmt.Errorf("error listing identities: %w", err)
	}
	return identities, nil
}

// UpdateIdentity applies a partial update. Each field group is authorised as
// its own operation: role writes are admin only and a credential change
// clears the forced-change flag.
func (s *DefaultService) UpdateIdentity(
	ctx context.Context,
	actor *models.Identity,
	id int64,
	req models.UpdateIdentityRequest,
) (*models.Identity, error) {
	var ops []policy.Operation
	if req.Email != nil || req.FullName != nil {
		ops = append(ops, policy.OpUpdate)
	}
	if req.Role != nil {
		ops = append(ops, policy.OpSetRole)
	}
	if req.Password != nil {
		ops = append(ops, policy.OpCredential)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", models.ErrInvalidInput)
	}
	for _, op := range ops {
		if err := policy.Authorize(actor, policy.KindIdentity, id, op); err != nil {
			return nil, err
		}
	}

	var hash string
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		var err error
		if hash, err = s.hashPassword(*req.Password); err != nil {
			return nil, err
		}
	}

	var admins int64
	if req.Role != nil && *req.Role != models.RoleAdmin {
		var err error
		if admins, err = s.repo.CountAdmins(ctx); err != nil {
			return nil, fmt.Errorf("error counting admins: %w", err)
		}
	}

	identity, err := s.repo.UpdateIdentity(ctx, id, func(identity *models.Identity) error {
		if req.Email != nil {
			identity.Email = strings.TrimSpace(*req.Email)
		}
		if req.FullName != nil {
			identity.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.Role != nil {
			if identity.Role == models.RoleAdmin && *req.Role != models.RoleAdmin && admins <= 1 {
				return fmt.Errorf("%w: cannot demote the last admin", models.ErrConflict)
			}
			identity.Role = *req.Role
		}
		if req.Password != nil {
			identity.PasswordHash = hash
			identity.MustChangeCredential = false
		}
		return validateIdentity(identity)
	})
	if err != nil {
		return nil, fmt.Errorf("error updating identity: %w", err)
	}

	return identity, nil
}

// DeleteIdentity removes the identity together with its vehicles and their
// access events
func (s *DefaultService) DeleteIdentity(ctx context.Context, actor *models.Identity, id int64) (*models.CascadeResult, error) {
	if err := policy.Authorize(actor, policy.KindIdentity, id, policy.OpDelete); err != nil {
		return nil, err
	}

	admins, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting admins: %w", err)
	}

	result, err := s.repo.DeleteIdentity(ctx, id, func(identity *models.Identity) error {
		if identity.IsAdmin() && admins <= 1 {
			return fmt.Errorf("%w: cannot delete the last admin", models.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error deleting identity: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"identity_id":      id,
		"deleted_by":       actor.ID,
		"vehicles_deleted": result.Vehicles,
		"events_deleted":   result.Events,
	}).Info("identity deleted")

	return result, nil
}

func (s *DefaultService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hashed), nil
}

func validateIdentity(identity *models.Identity) error {
	if n := utf8.RuneCountInString(identity.Login); n < minLoginLength || n > maxLoginLength {
		return fmt.Errorf("%w: username must be %d to %d characters", models.ErrInvalidInput, minLoginLength, maxLoginLength)
	}
	if !strings.Contains(identity.Email, "@") {
		return fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}
	if identity.FullName == "" {
		return fmt.Errorf("%w: full name is required", models.ErrInvalidInput)
	}
	if !models.IsValidRole(identity.Role) {
		return fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, identity.Role)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", models.ErrInvalidInput, minPasswordLength)
	}
	return nil
}
