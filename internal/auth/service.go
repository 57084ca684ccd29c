package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	pkgauth "github.com/dromeroc/tiendapos-backend/pkg/auth"
	"github.com/dromeroc/tiendapos-backend/pkg/auth/session"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/security"
)

const (
	defaultMaxFailedAttempts = 5
	defaultLockoutMinutes    = 15
)

// Service handles credential verification and the session lifecycle.
type Service interface {
	Login(ctx context.Context, meta RequestMeta, input LoginInput) (*TokenPair, error)
	Refresh(ctx context.Context, meta RequestMeta, input RefreshInput) (*TokenPair, error)
	Logout(ctx context.Context, meta RequestMeta, claims *pkgauth.AccessTokenClaims) error
}

// RequestMeta carries client details for the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginInput is the credential payload.
type LoginInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// RefreshInput rotates an expired access token.
type RefreshInput struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user,omitempty"`
}

// SessionManager is the surface this service needs from the Redis-backed
// session store.
type SessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type service struct {
	dbClient *db.Client
	sessions SessionManager
	recorder *audit.Recorder
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// NewService constructs the auth service.
func NewService(dbClient *db.Client, sessions SessionManager, recorder *audit.Recorder, jwtCfg config.JWTConfig) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		dbClient: dbClient,
		sessions: sessions,
		recorder: recorder,
		jwtCfg:   jwtCfg,
		now:      time.Now,
	}, nil
}

// Login verifies credentials and issues a token pair. Failed attempts
// accumulate until the store's lockout policy trips.
func (s *service) Login(ctx context.Context, meta RequestMeta, input LoginInput) (*TokenPair, error) {
	now := s.now().UTC()
	maxAttempts, lockout := s.lockoutPolicy(ctx)

	var user models.User
	err := s.dbClient.DB().WithContext(ctx).First(&user, "username = ?", input.Username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordFailure(ctx, meta, nil, input.Username, "unknown username")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	if !user.IsActive {
		s.recordFailure(ctx, meta, &user.ID, user.Username, "inactive account")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.recordFailure(ctx, meta, &user.ID, user.Username, "account locked")
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit,
			fmt.Sprintf("account locked until %s", user.LockedUntil.Format(time.RFC3339)))
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		if err := s.registerFailedAttempt(ctx, &user, now, maxAttempts, lockout); err != nil {
			return nil, err
		}
		s.recordFailure(ctx, meta, &user.ID, user.Username, "wrong password")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.dbClient.DB().WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"failed_attempts": 0,
			"locked_until":    nil,
			"last_login":      now,
		}).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording login")
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	pair, err := s.issueTokens(ctx, &user, session.NewAccessID())
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &user.ID,
		Action:      enums.AuditActionLogin,
		Entity:      "USER",
		EntityID:    &user.ID,
		Description: fmt.Sprintf("user %s logged in", user.Username),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	return pair, nil
}

// Refresh rotates the refresh token and mints a new access token. The
// old access token may be expired; only its signature and jti matter.
func (s *service) Refresh(ctx context.Context, meta RequestMeta, input RefreshInput) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, input.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, input.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	var user models.User
	err = s.dbClient.DB().WithContext(ctx).First(&user, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		// The rotated session must not survive a deactivated account.
		_ = s.sessions.Revoke(ctx, newAccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is no longer active")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	access, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh, User: &user}, nil
}

// Logout revokes the session tied to the presented token.
func (s *service) Logout(ctx context.Context, meta RequestMeta, claims *pkgauth.AccessTokenClaims) error {
	if claims == nil || claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &claims.UserID,
		Action:      enums.AuditActionLogout,
		Entity:      "USER",
		EntityID:    &claims.UserID,
		Description: fmt.Sprintf("user %s logged out", claims.Username),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	return nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User, accessID string) (*TokenPair, error) {
	access, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing session")
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// registerFailedAttempt bumps the counter and trips the lockout when the
// store's threshold is reached.
func (s *service) registerFailedAttempt(ctx context.Context, user *models.User, now time.Time, maxAttempts int, lockout time.Duration) error {
	attempts := user.FailedAttempts + 1
	updates := map[string]any{"failed_attempts": attempts}
	if attempts >= maxAttempts {
		lockedUntil := now.Add(lockout)
		updates["locked_until"] = lockedUntil
		updates["failed_attempts"] = 0
	}
	if err := s.dbClient.DB().WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording failed attempt")
	}
	return nil
}

func (s *service) recordFailure(ctx context.Context, meta RequestMeta, userID *uuid.UUID, username, reason string) {
	s.recorder.Record(ctx, audit.Entry{
		UserID:      userID,
		Action:      enums.AuditActionLoginFailed,
		Entity:      "USER",
		EntityID:    userID,
		Description: fmt.Sprintf("login failed for %s: %s", username, reason),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
}

// lockoutPolicy reads the store's thresholds, falling back to defaults
// when the config row is missing.
func (s *service) lockoutPolicy(ctx context.Context) (int, time.Duration) {
	var cfg models.StoreConfig
	err := s.dbClient.DB().WithContext(ctx).First(&cfg).Error
	if err != nil || cfg.MaxFailedAttempts <= 0 {
		return defaultMaxFailedAttempts, defaultLockoutMinutes * time.Minute
	}
	lockout := time.Duration(cfg.LockoutDurationMinutes) * time.Minute
	if lockout <= 0 {
		lockout = defaultLockoutMinutes * time.Minute
	}
	return cfg.MaxFailedAttempts, lockout
}
