package mail

import (
	"fmt"

	"neasmart2mqtt/internal/config"

	"go.uber.org/zap"
)

// Message is one mail as far as the bridge cares: who sent it and what the
// body says.
type Message struct {
	From string
	Body string
}

// Transport is one mailbox session. Sessions are short-lived: the poller
// opens one per poll cycle and always closes it, because the providers cap
// concurrent sessions and a leaked connection eventually locks the mailbox.
type Transport interface {
	// Count returns the number of messages currently in the mailbox.
	Count() (int, error)
	// Fetch retrieves the message with the given 1-based sequence number.
	Fetch(seq int) (*Message, error)
	Close() error
}

// Dialer opens a fresh mailbox session.
type Dialer func() (Transport, error)

// NewDialer selects the mailbox provider from configuration. One
// implementation per provider; today that is POP3 only.
func NewDialer(cfg config.MailboxConfig, logger *zap.Logger) (Dialer, error) {
	switch cfg.Provider {
	case "", "pop3":
		return newPOP3Dialer(cfg), nil
	default:
		return nil, fmt.Errorf("mail: unknown mailbox provider %q", cfg.Provider)
	}
}
