package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Severity classifica o alerta e define a cor no Slack.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) emoji() string {
	switch s {
	case SeverityWarning:
		return ":warning:"
	case SeverityCritical:
		return ":rotating_light:"
	default:
		return ":information_source:"
	}
}

func (s Severity) color() string {
	switch s {
	case SeverityWarning:
		return "#e0a100"
	case SeverityCritical:
		return "#d40e0d"
	default:
		return "#2eb67d"
	}
}

// Notifier envia alertas para canais externos.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}

// AlertMessage é um alerta de conectividade. Fields vira a tabela de detalhes.
type AlertMessage struct {
	Title    string
	Text     string
	Severity Severity
	Fields   map[string]string
}

// SlackNotifier publica em um incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	attempts   uint64
}

// NewNotifier devolve nil quando não há webhook configurado.
func NewNotifier(webhookURL string) Notifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		attempts:   3,
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

func buildSlackPayload(msg AlertMessage, now time.Time) slackPayload {
	title := "Monitora Saúde"
	if msg.Title != "" {
		title += ": " + msg.Title
	}
	att := slackAttachment{Color: msg.Severity.color(), Text: msg.Text, Ts: now.Unix()}

	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		att.Fields = append(att.Fields, slackField{Title: k, Value: msg.Fields[k], Short: true})
	}

	return slackPayload{
		Text:        msg.Severity.emoji() + " *" + title + "*",
		Attachments: []slackAttachment{att},
	}
}

// Notify envia o alerta; 429 e 5xx são repetidos com backoff.
func (s *SlackNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	body, err := json.Marshal(buildSlackPayload(msg, time.Now()))
	if err != nil {
		return err
	}

	send := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("slack: status %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("slack: status %d", resp.StatusCode))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.Retry(send, backoff.WithContext(backoff.WithMaxRetries(b, s.attempts-1), ctx))
}
