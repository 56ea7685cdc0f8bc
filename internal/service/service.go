package service

import (
	"context"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/repository"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/fzkn4/gate-security/internal/session"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations. Every operation except
// Login and Authenticate takes the acting identity resolved from its token.
type Service interface {
	// Authentication
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
	Logout(ctx context.Context, token string) error
	EnsureBootstrapAdmin(ctx context.Context, login, email, password string) (*models.Identity, error)

	// Identity operations
	CreateIdentity(ctx context.Context, actor *models.Identity, req models.CreateIdentityRequest) (*models.Identity, error)
	GetIdentity(ctx context.Context, actor *models.Identity, id int64) (*models.Identity, error)
	ListIdentities(ctx context.Context, actor *models.Identity) ([]models.IdentityListItem, error)
	UpdateIdentity(ctx context.Context, actor *models.Identity, id int64, req models.UpdateIdentityRequest) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, actor *models.Identity, id int64) (*models.CascadeResult, error)

	// Vehicle operations
	CreateVehicle(ctx context.Context, actor *models.Identity, req models.CreateVehicleRequest) (*models.VehicleView, []byte, error)
	GetVehicle(ctx context.Context, actor *models.Identity, id int64) (*models.VehicleView, error)
	ListVehicles(ctx context.Context, actor *models.Identity, ownerID *int64) ([]models.VehicleView, error)
	UpdateVehicle(ctx context.Context, actor *models.Identity, id int64, req models.UpdateVehicleRequest) (*models.VehicleView, error)
	DeleteVehicle(ctx context.Context, actor *models.Identity, id int64) (*models.CascadeResult, error)
	VehicleCode(ctx context.Context, actor *models.Identity, id int64) ([]byte, error)

	// Access ledger
	Scan(ctx context.Context, actor *models.Identity, req models.ScanRequest) (*models.EventView, error)
	ListEvents(ctx context.Context, actor *models.Identity, req models.ListEventsRequest) (*models.EventsResponse, error)
	Stats(ctx context.Context, actor *models.Identity) (*models.Stats, error)
}

// Clock returns the current time
type Clock func() time.Time

// Options configures a DefaultService. Zero values fall back to defaults.
type Options struct {
	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	DefaultLocation string
	StatsLocation   *time.Location
	Clock           Clock
	Logger          *logrus.Logger
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo    repository.Repository
	encoder scancode.Encoder
	revoker session.Revoker
	log     *logrus.Logger

	jwtSecret       []byte
	tokenDuration   time.Duration
	bcryptCost      int
	dummyHash       []byte
	defaultLocation string
	statsLocation   *time.Location
	now             Clock
}

var _ Service = (*DefaultService)(nil)

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	encoder scancode.Encoder,
	revoker session.Revoker,
	opts Options,
) *DefaultService {
	s := &DefaultService{
		repo:            repo,
		encoder:         encoder,
		revoker:         revoker,
		log:             opts.Logger,
		jwtSecret:       []byte(opts.JWTSecret),
		tokenDuration:   opts.TokenTTL,
		bcryptCost:      opts.BcryptCost,
		defaultLocation: opts.DefaultLocation,
		statsLocation:   opts.StatsLocation,
		now:             opts.Clock,
	}

	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.tokenDuration <= 0 {
		s.tokenDuration = 24 * time.Hour // 24 hours token validity
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.defaultLocation == "" {
		s.defaultLocation = "Main Gate"
	}
	if s.statsLocation == nil {
		s.statsLocation = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}

	// Compared against when the login is unknown so both failure paths cost one bcrypt run
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)

	return s
}
