package neasmart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"neasmart2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

const DefaultAPIBase = "https://api.neasmart.rehau.com/v1"

// TokenSource is the slice of the token manager the client needs.
type TokenSource interface {
	AccessToken() string
	EnsureValidToken(ctx context.Context) error
	// Invalidate marks the current token unusable (server-side rejection).
	Invalidate()
}

// Client fetches installation data from the vendor API.
type Client struct {
	apiBase string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

func NewClient(apiBase string, tokens TokenSource, logger *zap.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		apiBase: apiBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logger.With(zap.String("component", "neasmart")),
	}
}

// FetchInstallation returns a fresh typed snapshot. installRef selects the
// installation by ID; empty picks the first one on the account. A 401 gets
// one token-repair retry before failing.
func (c *Client) FetchInstallation(ctx context.Context, installRef string) (*domain.Installation, error) {
	body, err := c.fetchRaw(ctx, false)
	if err != nil {
		return nil, err
	}

	installs, err := ParseInstallations(body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			// raw payload logged for diagnosis: the schema shifts without notice
			c.logger.Error("installation payload failed validation",
				zap.String("path", verr.Path),
				zap.String("reason", verr.Reason),
				zap.ByteString("raw", body))
		}
		return nil, err
	}
	if len(installs) == 0 {
		return nil, validationErr("$", "account has no installations")
	}
	if installRef == "" {
		return installs[0], nil
	}
	for _, inst := range installs {
		if inst.ID == installRef {
			return inst, nil
		}
	}
	return nil, validationErr("$", "installation %s not found on account", installRef)
}

func (c *Client) fetchRaw(ctx context.Context, retried bool) ([]byte, error) {
	if err := c.tokens.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/me/installations", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized && !retried:
		c.logger.Warn("installation fetch got 401, repairing session")
		c.tokens.Invalidate()
		return c.fetchRaw(ctx, true)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("neasmart: installation fetch returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
