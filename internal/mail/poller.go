package mail

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller watches a mailbox for the vendor's MFA verification mail. It keeps
// no connection open between polls.
type Poller struct {
	dial         Dialer
	pollInterval time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	baseline int
	hasBase  bool
}

func NewPoller(dial Dialer, pollInterval time.Duration, logger *zap.Logger) *Poller {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Poller{
		dial:         dial,
		pollInterval: pollInterval,
		logger:       logger.With(zap.String("component", "mailpoller")),
	}
}

// Snapshot records the current message count as the baseline. Called before
// the MFA challenge is initiated so the verification mail is guaranteed to
// land above the baseline.
func (p *Poller) Snapshot(ctx context.Context) error {
	count, err := p.countOnce()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.baseline = count
	p.hasBase = true
	p.mu.Unlock()
	p.logger.Debug("mailbox baseline taken", zap.Int("count", count))
	return nil
}

// WaitForMessage polls until a new message from the given sender arrives,
// returning its body. Returns "" with a nil error on timeout so the caller
// decides whether silence is fatal. Cancelling ctx aborts the wait.
func (p *Poller) WaitForMessage(ctx context.Context, from string, timeout time.Duration) (string, error) {
	p.mu.Lock()
	baseline := p.baseline
	hasBase := p.hasBase
	p.hasBase = false
	p.mu.Unlock()

	if !hasBase {
		count, err := p.countOnce()
		if err != nil {
			return "", err
		}
		baseline = count
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		body, err := p.checkOnce(baseline, from)
		if err != nil {
			p.logger.Warn("mailbox poll failed", zap.Error(err))
		} else if body != "" {
			return body, nil
		}

		if time.Now().After(deadline) {
			p.logger.Warn("no verification mail before timeout", zap.Duration("timeout", timeout))
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) countOnce() (int, error) {
	session, err := p.dial()
	if err != nil {
		return 0, err
	}
	defer session.Close()
	return session.Count()
}

// checkOnce opens one session, scans messages above the baseline for a
// matching sender and closes the session whatever happens.
func (p *Poller) checkOnce(baseline int, from string) (string, error) {
	session, err := p.dial()
	if err != nil {
		return "", err
	}
	defer session.Close()

	count, err := session.Count()
	if err != nil {
		return "", err
	}
	for seq := baseline + 1; seq <= count; seq++ {
		msg, err := session.Fetch(seq)
		if err != nil {
			return "", err
		}
		if matchesSender(msg.From, from) {
			return msg.Body, nil
		}
	}
	return "", nil
}

func matchesSender(header, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(header), strings.ToLower(want))
}
