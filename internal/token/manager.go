package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"neasmart2mqtt/internal/auth"
	"neasmart2mqtt/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// Authenticator is the slice of the auth engine the manager needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Close()
}

// Manager owns the Session. It is the single writer: login and refresh are
// serialized, everything else reads copies.
type Manager struct {
	authenticator   Authenticator
	email           string
	password        string
	refreshInterval time.Duration
	logger          *zap.Logger

	mu      sync.RWMutex
	session *domain.Session

	refreshMu sync.Mutex
	scheduler quartz.Scheduler
	stopOnce  sync.Once
}

func NewManager(authenticator Authenticator, email, password string, refreshInterval time.Duration, logger *zap.Logger) *Manager {
	if refreshInterval <= 0 {
		refreshInterval = 6 * time.Hour
	}
	return &Manager{
		authenticator:   authenticator,
		email:           email,
		password:        password,
		refreshInterval: refreshInterval,
		logger:          logger.With(zap.String("component", "token")),
	}
}

// Start performs the initial login and schedules the periodic refresh.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}

	m.scheduler = quartz.NewStdScheduler()
	m.scheduler.Start(ctx)

	refreshJob := job.NewFunctionJob(func(jobCtx context.Context) (bool, error) {
		if err := m.refresh(jobCtx, true); err != nil {
			m.logger.Error("scheduled token refresh failed", zap.Error(err))
			return false, err
		}
		return true, nil
	})
	detail := quartz.NewJobDetail(refreshJob, quartz.NewJobKey("token_refresh"))
	if err := m.scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(m.refreshInterval)); err != nil {
		return err
	}
	return nil
}

// EnsureValidToken refreshes or re-authenticates until the stored session is
// usable. A rotten refresh token falls back to a full login: refresh tokens
// do expire eventually and that is normal long-run behavior, not an error.
func (m *Manager) EnsureValidToken(ctx context.Context) error {
	return m.refresh(ctx, false)
}

// refresh serializes all session mutation. With force set (the scheduled
// path) it refreshes even a still-usable token, which guarantees a refresh
// happens before expiry whenever the interval is shorter than the token
// lifetime.
func (m *Manager) refresh(ctx context.Context, force bool) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	current := m.snapshot()
	if !force && current != nil && current.UsableAt(time.Now()) {
		return nil
	}

	if current != nil && current.RefreshToken != "" {
		session, err := m.authenticator.Refresh(ctx, current.RefreshToken)
		if err == nil {
			m.setSession(session)
			m.logger.Info("token refreshed", zap.Time("expires_at", session.ExpiresAt))
			return nil
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			m.logger.Warn("refresh token no longer valid, performing full login")
		} else {
			m.logger.Warn("token refresh failed, performing full login", zap.Error(err))
		}
	}

	session, err := m.authenticator.Login(ctx, m.email, m.password)
	if err != nil {
		m.setSession(nil)
		return err
	}
	m.setSession(session)
	m.logger.Info("logged in", zap.Time("expires_at", session.ExpiresAt))
	return nil
}

// Invalidate drops the access token after a server-side rejection so the
// next EnsureValidToken goes through refresh/login. The refresh token is
// kept: it usually still works.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	if m.session != nil {
		m.session.AccessToken = ""
	}
	m.mu.Unlock()
}

// AccessToken returns the current access token or "".
func (m *Manager) AccessToken() string {
	s := m.snapshot()
	if s == nil || !s.UsableAt(time.Now()) {
		return ""
	}
	return s.AccessToken
}

// Session returns a copy of the current session, or nil when logged out.
func (m *Manager) Session() *domain.Session {
	return m.snapshot()
}

// Status reports whether a usable session exists and how old it is.
func (m *Manager) Status() (authenticated bool, age time.Duration) {
	s := m.snapshot()
	if s == nil {
		return false, 0
	}
	now := time.Now()
	return s.UsableAt(now), s.Age(now)
}

func (m *Manager) snapshot() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	copied := *m.session
	return &copied
}

func (m *Manager) setSession(s *domain.Session) {
	if s != nil {
		if exp, ok := jwtExpiry(s.AccessToken); ok && exp.Before(s.ExpiresAt) {
			s.ExpiresAt = exp
		}
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

// Cleanup stops the refresh scheduler and tears down the auth engine.
// Idempotent: it is reached from the graceful shutdown path, from fatal
// error handling and from explicit restarts, sometimes more than once.
func (m *Manager) Cleanup() {
	m.stopOnce.Do(func() {
		if m.scheduler != nil {
			m.scheduler.Stop()
		}
		m.authenticator.Close()
		m.logger.Debug("token manager cleaned up")
	})
}

// jwtExpiry reads the exp claim of an access token without verifying the
// signature. The vendor's expires_in has been observed to disagree with the
// token itself; the earlier of the two wins.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
