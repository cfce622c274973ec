package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"neasmart2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

// Mailbox is the slice of the mail poller the MFA sub-flow needs. Snapshot
// is taken before the challenge is initiated so the verification mail is
// always newer than the baseline. An empty body with a nil error from
// WaitForMessage means the wait timed out.
type Mailbox interface {
	Snapshot(ctx context.Context) error
	WaitForMessage(ctx context.Context, from string, timeout time.Duration) (string, error)
}

type EngineConfig struct {
	Endpoints    Endpoints
	ClientID     string
	Scope        string
	SenderFilter string
	MFATimeout   time.Duration
}

// Engine drives the vendor's OAuth2 authorization-code + PKCE login,
// including the mandatory email MFA round trip. It is transport-agnostic:
// the same sequence runs over the direct HTTP client or, when the edge
// blocks it, over the browser engine.
type Engine struct {
	cfg     EngineConfig
	direct  Transport
	browser Transport
	mailbox Mailbox
	logger  *zap.Logger
}

func NewEngine(cfg EngineConfig, direct, browser Transport, mailbox Mailbox, logger *zap.Logger) *Engine {
	if cfg.MFATimeout <= 0 {
		cfg.MFATimeout = 10 * time.Minute
	}
	if cfg.Scope == "" {
		cfg.Scope = "openid profile email offline_access"
	}
	return &Engine{
		cfg:     cfg,
		direct:  direct,
		browser: browser,
		mailbox: mailbox,
		logger:  logger.With(zap.String("component", "auth")),
	}
}

// Login authenticates against the vendor cloud and returns a fresh session.
// A bot-detection block on the direct transport transparently retries the
// whole sequence on the browser transport.
func (e *Engine) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := e.loginWith(ctx, e.direct, email, password)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, ErrBotChallengeBlocked) && e.browser != nil {
		e.logger.Warn("direct transport blocked by bot detection, falling back to browser engine")
		return e.loginWith(ctx, e.browser, email, password)
	}
	return nil, err
}

func (e *Engine) loginWith(ctx context.Context, tr Transport, email, password string) (*domain.Session, error) {
	if err := tr.Reset(); err != nil {
		return nil, err
	}

	pkce, err := newPKCEPair()
	if err != nil {
		return nil, err
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	// Step 1: authorize. The edge returns an error page even on logical
	// success; only the requestId in the resolved URL matters.
	authURL := e.cfg.Endpoints.AuthorizeURL + "?" + url.Values{
		"client_id":             {e.cfg.ClientID},
		"redirect_uri":          {e.cfg.Endpoints.RedirectURI},
		"response_type":         {"code"},
		"scope":                 {e.cfg.Scope},
		"nonce":                 {nonce},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {"S256"},
	}.Encode()

	resp, err := tr.Get(ctx, authURL)
	if err != nil {
		return nil, err
	}
	if resp.Status == 403 {
		return nil, ErrBotChallengeBlocked
	}
	requestID := resp.query("requestId")
	if requestID == "" {
		e.logProtocol("authorize", resp)
		return nil, protocolErr("authorize", resp.Status, resp.Body, errors.New("no requestId in resolved URL"))
	}

	// Step 2: credentials
	resp, err = tr.PostForm(ctx, e.cfg.Endpoints.LoginURL, url.Values{
		"username":  {email},
		"password":  {password},
		"requestId": {requestID},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == 403 {
		return nil, ErrBotChallengeBlocked
	}
	switch resp.query("error") {
	case "":
	case "invalid_credentials", "access_denied":
		return nil, ErrInvalidCredentials
	default:
		e.logProtocol("login", resp)
		return nil, protocolErr("login", resp.Status, resp.Body, errors.New("unexpected error redirect: "+resp.query("error")))
	}

	code := resp.query("code")
	if code == "" {
		// MFA redirect carries track_id, sub and a new requestId
		trackID := resp.query("track_id")
		if trackID == "" {
			e.logProtocol("login", resp)
			return nil, protocolErr("login", resp.Status, resp.Body, errors.New("redirect has neither code nor track_id"))
		}
		code, err = e.mfaFlow(ctx, tr, trackID, resp.query("sub"), resp.query("requestId"))
		if err != nil {
			return nil, err
		}
	}

	return e.exchangeCode(ctx, tr, code, pkce.Verifier)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (e *Engine) exchangeCode(ctx context.Context, tr Transport, code, verifier string) (*domain.Session, error) {
	resp, err := tr.PostForm(ctx, e.cfg.Endpoints.TokenURL, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
		"client_id":     {e.cfg.ClientID},
		"redirect_uri":  {e.cfg.Endpoints.RedirectURI},
	})
	if err != nil {
		return nil, err
	}
	return e.parseTokenResponse("token", resp)
}

// Refresh trades a refresh token for a new session. Runs on the direct
// transport: the token endpoint sits behind the API gateway, not the
// fingerprinting edge.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	resp, err := e.direct.PostForm(ctx, e.cfg.Endpoints.TokenURL, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {e.cfg.ClientID},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == 400 || resp.Status == 401 {
		return nil, ErrInvalidCredentials
	}
	return e.parseTokenResponse("refresh", resp)
}

func (e *Engine) parseTokenResponse(step string, resp *Response) (*domain.Session, error) {
	if resp.Status < 200 || resp.Status >= 300 {
		e.logProtocol(step, resp)
		return nil, protocolErr(step, resp.Status, resp.Body, errors.New("token endpoint returned non-2xx"))
	}
	var tok tokenResponse
	if err := json.Unmarshal([]byte(resp.Body), &tok); err != nil {
		e.logProtocol(step, resp)
		return nil, protocolErr(step, resp.Status, resp.Body, err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		e.logProtocol(step, resp)
		return nil, protocolErr(step, resp.Status, resp.Body, errors.New("token response missing tokens"))
	}
	now := time.Now()
	return &domain.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tok.ExpiresIn) * time.Second),
		ClientID:     e.cfg.ClientID,
		CreatedAt:    now,
	}, nil
}

func (e *Engine) logProtocol(step string, resp *Response) {
	finalURL := ""
	if resp.FinalURL != nil {
		finalURL = resp.FinalURL.String()
	}
	e.logger.Error("unexpected response shape from vendor login flow",
		zap.String("step", step),
		zap.Int("status", resp.Status),
		zap.String("final_url", finalURL),
		zap.String("raw_body", resp.Body))
}

// Close tears down both transports. Idempotent.
func (e *Engine) Close() {
	if e.direct != nil {
		_ = e.direct.Close()
	}
	if e.browser != nil {
		_ = e.browser.Close()
	}
}
