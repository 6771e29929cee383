package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rbac-admin/internal/cache"
	"rbac-admin/internal/captcha"
	"rbac-admin/internal/metrics"
	"rbac-admin/internal/model"
	"rbac-admin/internal/reqctx"
	"rbac-admin/internal/token"
)

const tokenType = "Bearer"

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, ip string, at time.Time) error
}

type LoginLogStore interface {
	Create(ctx context.Context, entry model.LoginLog) error
}

type AuthOptions struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	CaptchaTTL      time.Duration
	CaptchaRequired bool
}

type AuthDeps struct {
	Codec       *token.Codec
	Revocations *cache.RevocationStore
	Sessions    *cache.SessionRegistry
	Derived     *cache.DerivedCache
	Captchas    *cache.CaptchaStore
	Generator   *captcha.Generator
	Users       UserStore
	LoginLogs   LoginLogStore
	Permissions *PermissionService
	Metrics     *metrics.Metrics
}

// AuthService drives login, logout, token rotation and captcha challenges.
type AuthService struct {
	AuthDeps
	opts AuthOptions
	now  func() time.Time
}

func NewAuthService(deps AuthDeps, opts AuthOptions) *AuthService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.CaptchaTTL <= 0 {
		opts.CaptchaTTL = 5 * time.Minute
	}
	if deps.Generator == nil {
		deps.Generator = captcha.NewGenerator()
	}

	return &AuthService{AuthDeps: deps, opts: opts, now: time.Now}
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return model.LoginResponse{}, fmt.Errorf("%w: username and password are required", model.ErrInvalidInput)
	}

	if err := s.checkCaptcha(ctx, req); err != nil {
		s.failLogin(ctx, username, "captcha", err)
		return model.LoginResponse{}, err
	}

	user, err := s.authenticate(ctx, username, req.Password)
	if err != nil {
		s.failLogin(ctx, username, "credentials", err)
		return model.LoginResponse{}, err
	}

	if !user.Enabled() {
		s.failLogin(ctx, username, "disabled", model.ErrUserDisabled)
		return model.LoginResponse{}, model.ErrUserDisabled
	}

	permissions, err := s.Permissions.PermissionsForUser(ctx, user.ID)
	if err != nil {
		s.failLogin(ctx, username, "internal", err)
		return model.LoginResponse{}, err
	}
	roles, err := s.Permissions.RolesForUser(ctx, user.ID)
	if err != nil {
		s.failLogin(ctx, username, "internal", err)
		return model.LoginResponse{}, err
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		s.failLogin(ctx, username, "internal", err)
		return model.LoginResponse{}, err
	}

	info, _ := reqctx.RequestInfoFrom(ctx)
	if err := s.Users.UpdateLastLogin(ctx, user.ID, info.ClientIP, s.now().UTC()); err != nil {
		slog.Warn("update last login failed", "user_id", user.ID, "error", err)
	}

	s.recordLogin(ctx, user.Username, model.LoginSuccess, "login succeeded")
	s.Metrics.ObserveLogin(metrics.OutcomeSuccess, "none")
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)

	return model.LoginResponse{
		TokenPair: pair,
		User: model.UserInfo{
			UserProfile: user.Profile(),
			Permissions: PermissionCodes(permissions),
			Roles:       RoleCodes(roles),
		},
	}, nil
}

// Logout revokes the given tokens and closes their sessions. Empty and
// undecodable tokens are skipped, so repeating a logout is harmless.
func (s *AuthService) Logout(ctx context.Context, accessToken string, refreshToken string) error {
	var firstErr error
	for _, raw := range []string{accessToken, refreshToken} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		claims, err := s.Codec.Decode(raw)
		if err != nil {
			continue
		}

		if err := s.revoke(ctx, raw, claims); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.Sessions.Close(ctx, raw); err != nil {
			slog.Warn("logout: close session failed", "user_id", claims.UserID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		s.Derived.InvalidateProfile(ctx, raw)
		if claims.Kind == model.TokenRefresh {
			if err := s.Sessions.ForgetRefresh(ctx, claims.UserID, raw); err != nil {
				slog.Warn("logout: forget refresh token failed", "user_id", claims.UserID, "error", err)
			}
		}
	}

	return firstErr
}

// Refresh rotates a refresh token. The old token is revoked with set-if-absent
// semantics, so of two concurrent refreshes with the same token only one wins.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	pair, err := s.refresh(ctx, strings.TrimSpace(refreshToken))
	if err != nil {
		s.Metrics.ObserveRefresh(metrics.OutcomeFailure, refreshReason(err))
		return model.TokenPair{}, err
	}

	s.Metrics.ObserveRefresh(metrics.OutcomeSuccess, "none")
	return pair, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.Codec.Check(refreshToken, model.TokenRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}
	if s.Revocations.IsRevoked(ctx, refreshToken) {
		return model.TokenPair{}, model.ErrTokenRevoked
	}

	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !user.Enabled() {
		return model.TokenPair{}, model.ErrUserDisabled
	}

	issued, err := s.issuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	created, err := s.Revocations.Revoke(ctx, refreshToken, claims)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !created {
		return model.TokenPair{}, model.ErrTokenRevoked
	}
	s.Metrics.TokenRevoked()
	if err := s.Sessions.ForgetRefresh(ctx, user.ID, refreshToken); err != nil {
		slog.Warn("refresh: forget rotated token failed", "user_id", user.ID, "error", err)
	}

	if err := s.openSession(ctx, user, issued); err != nil {
		return model.TokenPair{}, err
	}

	return s.pair(issued.access, issued.refresh), nil
}

func (s *AuthService) GenerateCaptcha(ctx context.Context) (model.Captcha, error) {
	challenge, err := s.Generator.Generate()
	if err != nil {
		return model.Captcha{}, err
	}

	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.Captchas.Save(ctx, key, challenge.Code, s.opts.CaptchaTTL); err != nil {
		return model.Captcha{}, err
	}

	return model.Captcha{
		CaptchaKey:   key,
		CaptchaImage: challenge.DataURL(),
		ExpiresIn:    int64(s.opts.CaptchaTTL.Seconds()),
	}, nil
}

// VerifyCaptcha consumes the challenge and reports whether the answer matched.
// Login goes through the same check.
func (s *AuthService) VerifyCaptcha(ctx context.Context, key string, answer string) bool {
	return s.verifyCaptcha(ctx, key, answer) == nil
}

func (s *AuthService) verifyCaptcha(ctx context.Context, key string, answer string) error {
	err := s.Captchas.Consume(ctx, key, answer)
	if err != nil && !errors.Is(err, model.ErrCaptchaInvalid) && !errors.Is(err, model.ErrCaptchaMissing) {
		slog.Warn("captcha verification failed", "error", err)
	}
	return err
}

func (s *AuthService) CurrentUser(ctx context.Context) (model.UserInfo, error) {
	identity, ok := reqctx.IdentityFrom(ctx)
	if !ok {
		return model.UserInfo{}, model.ErrUnauthorized
	}
	return identity.Info(), nil
}

// LoadIdentity assembles the request identity for an already verified access
// token, preferring cached data.
func (s *AuthService) LoadIdentity(ctx context.Context, tokenString string, claims *model.Claims) (*model.Identity, error) {
	profile, ok := s.Derived.GetProfile(ctx, tokenString)
	if !ok {
		user, err := s.Users.FindByID(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		profile = user.Profile()
		s.Derived.PutProfile(ctx, tokenString, profile, 0)
	}

	if profile.Username != claims.Subject || profile.UserID != claims.UserID {
		return nil, model.ErrUnauthorized
	}
	if !profile.Enabled() {
		return nil, model.ErrUserDisabled
	}

	permissions, err := s.Permissions.PermissionsForUser(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	roles, err := s.Permissions.RolesForUser(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	return &model.Identity{
		UserID:      profile.UserID,
		Username:    profile.Username,
		Token:       tokenString,
		Claims:      claims,
		Profile:     profile,
		Permissions: PermissionCodes(permissions),
		Roles:       RoleCodes(roles),
	}, nil
}

func (s *AuthService) checkCaptcha(ctx context.Context, req model.LoginRequest) error {
	if strings.TrimSpace(req.CaptchaKey) == "" && strings.TrimSpace(req.Captcha) == "" {
		if s.opts.CaptchaRequired {
			return model.ErrCaptchaMissing
		}
		return nil
	}

	return s.verifyCaptcha(ctx, req.CaptchaKey, req.Captcha)
}

func (s *AuthService) authenticate(ctx context.Context, username string, password string) (model.User, error) {
	user, err := s.Users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}

	return user, nil
}

type issuedPair struct {
	access        string
	accessClaims  *model.Claims
	refresh       string
	refreshClaims *model.Claims
}

func (s *AuthService) startSession(ctx context.Context, user model.User) (model.TokenPair, error) {
	issued, err := s.issuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.openSession(ctx, user, issued); err != nil {
		return model.TokenPair{}, err
	}

	return s.pair(issued.access, issued.refresh), nil
}

// openSession registers the access token as online and tracks the refresh
// token so a forced logout can revoke it.
func (s *AuthService) openSession(ctx context.Context, user model.User, issued issuedPair) error {
	if err := s.Sessions.Open(ctx, issued.access, user.ID, issued.accessClaims.ExpiresAt); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	if err := s.Sessions.TrackRefresh(ctx, user.ID, issued.refresh, issued.refreshClaims.ExpiresAt); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	s.Derived.PutProfile(ctx, issued.access, user.Profile(), 0)
	return nil
}

func (s *AuthService) issuePair(user model.User) (issuedPair, error) {
	access, accessClaims, err := s.Codec.Issue(user.ID, user.Username, model.TokenAccess, s.opts.AccessTTL)
	if err != nil {
		return issuedPair{}, err
	}
	refresh, refreshClaims, err := s.Codec.Issue(user.ID, user.Username, model.TokenRefresh, s.opts.RefreshTTL)
	if err != nil {
		return issuedPair{}, err
	}
	return issuedPair{access: access, accessClaims: accessClaims, refresh: refresh, refreshClaims: refreshClaims}, nil
}

func (s *AuthService) pair(access string, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
		ExpiresIn:    int64(s.opts.AccessTTL.Seconds()),
	}
}

func (s *AuthService) revoke(ctx context.Context, raw string, claims *model.Claims) error {
	created, err := s.Revocations.Revoke(ctx, raw, claims)
	if err != nil {
		slog.Warn("revoke token failed", "user_id", claims.UserID, "kind", claims.Kind, "error", err)
		return err
	}
	if created {
		s.Metrics.TokenRevoked()
	}
	return nil
}

func (s *AuthService) failLogin(ctx context.Context, username string, reason string, err error) {
	s.recordLogin(ctx, username, model.LoginFailed, err.Error())
	s.Metrics.ObserveLogin(metrics.OutcomeFailure, reason)
}

// recordLogin writes the login audit trail. It never affects the outcome of
// the login itself.
func (s *AuthService) recordLogin(ctx context.Context, username string, status int, message string) {
	if s.LoginLogs == nil {
		return
	}

	info, _ := reqctx.RequestInfoFrom(ctx)
	entry := model.LoginLog{
		Username:  username,
		IP:        info.ClientIP,
		UserAgent: info.UserAgent,
		Status:    status,
		Message:   model.TruncateLoginMessage(message),
		LoginTime: s.now().UTC(),
	}

	if err := s.LoginLogs.Create(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("record login log failed", "username", username, "error", err)
	}
}

func refreshReason(err error) string {
	switch {
	case errors.Is(err, model.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, model.ErrTokenKindMismatch):
		return "kind"
	case errors.Is(err, model.ErrTokenExpired):
		return "expired"
	case errors.Is(err, model.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, model.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, model.ErrUserDisabled):
		return "disabled"
	default:
		return "internal"
	}
}
