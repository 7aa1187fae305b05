// Package mail envia os e-mails transacionais (redefinição de senha).
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/monitorasaude/api/internal/config"
)

// Message é um e-mail pronto para envio.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender entrega mensagens.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New escolhe o provedor configurado.
func New(cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case "http":
		return NewHTTPSender(cfg.APIURL, cfg.APIKey, cfg.From, cfg.FromName), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From, cfg.FromName), nil
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("provedor de e-mail desconhecido: %s", cfg.Provider)
	}
}

// HTTPSender usa uma API HTTP de e-mail transacional.
type HTTPSender struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	from     string
	attempts uint64
	initial  time.Duration
}

// NewHTTPSender cria o cliente. A chave vem sempre da configuração.
func NewHTTPSender(baseURL, apiKey, from, fromName string) *HTTPSender {
	sender := from
	if fromName != "" {
		sender = fmt.Sprintf("%s <%s>", fromName, from)
	}
	return &HTTPSender{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  baseURL,
		apiKey:   apiKey,
		from:     sender,
		attempts: 3,
		initial:  500 * time.Millisecond,
	}
}

type httpPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Send publica a mensagem, repetindo em 429 e 5xx.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return errors.New("MAIL_API_KEY não configurada")
	}
	body, err := json.Marshal(httpPayload{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.MaxElapsedTime = 0
	b.Reset()

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("mail api status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("mail api status %d", resp.StatusCode))
		}
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(b, s.attempts-1), ctx)
	if err := backoff.Retry(op, retry); err != nil {
		return fmt.Errorf("enviar e-mail: %w", err)
	}
	return nil
}

// SMTPSender envia via SMTP autenticado.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPSender cria o remetente SMTP.
func NewSMTPSender(host string, port int, user, password, from, fromName string) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(host, port, user, password),
		from:     from,
		fromName: fromName,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("enviar e-mail: %w", err)
	}
	return nil
}

// LogSender só registra a mensagem. Usado em desenvolvimento.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().Str("component", "mail").Str("to", msg.To).Str("subject", msg.Subject).Msg("e-mail não enviado (provedor log)")
	return nil
}
