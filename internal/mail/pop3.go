package mail

import (
	"io"

	"neasmart2mqtt/internal/config"

	"github.com/knadh/go-pop3"
)

type pop3Session struct {
	conn *pop3.Conn
}

func newPOP3Dialer(cfg config.MailboxConfig) Dialer {
	client := pop3.New(pop3.Opt{
		Host:       cfg.Host,
		Port:       int(cfg.Port),
		TLSEnabled: true,
	})
	return func() (Transport, error) {
		conn, err := client.NewConn()
		if err != nil {
			return nil, err
		}
		if err := conn.Auth(cfg.Username, cfg.Password); err != nil {
			_ = conn.Quit()
			return nil, err
		}
		return &pop3Session{conn: conn}, nil
	}
}

func (s *pop3Session) Count() (int, error) {
	count, _, err := s.conn.Stat()
	return count, err
}

func (s *pop3Session) Fetch(seq int) (*Message, error) {
	entity, err := s.conn.Retr(seq)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, err
	}
	return &Message{
		From: entity.Header.Get("From"),
		Body: string(body),
	}, nil
}

func (s *pop3Session) Close() error {
	return s.conn.Quit()
}
