package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/autokuro/internal/config"
	securelog "github.com/nao1215/autokuro/internal/log"
	"github.com/nao1215/autokuro/internal/model"
)

const (
	// DefaultBaseURL is the Telegram Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// DefaultTimeout bounds one sendMessage call.
	DefaultTimeout = 10 * time.Second

	// placeholderToken marks the bot token shipped in the config template.
	placeholderToken = "YOUR_BOT"

	// maxErrorBody caps how much of a failed API response is read.
	maxErrorBody = 4 << 10
)

// ErrSendFailed is returned when the Bot API rejects a message.
var ErrSendFailed = errors.New("telegram sendMessage failed")

// Notifier sends run notifications to a Telegram chat.
//
// A Notifier built from a disabled or incomplete configuration is valid and
// silently drops every message, so callers never need to check Enabled
// before sending.
type Notifier struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	enabled bool
	timeout time.Duration
	proxy   string
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithBaseURL points the notifier at another Bot API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(n *Notifier) {
		n.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client. The proxy setting is ignored when
// a client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}

// WithProxy routes Bot API traffic through the given proxy URL.
func WithProxy(proxyURL string) Option {
	return func(n *Notifier) {
		n.proxy = proxyURL
	}
}

// WithTimeout sets the per-message timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets the logger used to report delivery problems.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New creates a Notifier from the telegram section of the configuration
// file. The notifier is enabled only when cfg.Enabled is set, the bot token
// is not the template placeholder and a chat ID is present.
func New(cfg config.TelegramConfig, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		baseURL: DefaultBaseURL,
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}

	n.enabled = cfg.Enabled &&
		n.token != "" &&
		n.chatID != "" &&
		!strings.Contains(n.token, placeholderToken)

	if n.client == nil {
		client, err := newHTTPClient(n.proxy, n.timeout)
		if err != nil {
			return nil, err
		}
		n.client = client
	}
	return n, nil
}

// Enabled reports whether messages are actually delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text to the configured chat using Markdown formatting.
// It is a no-op on a disabled notifier.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiResp apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &apiResp); err == nil && apiResp.Description != "" {
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, apiResp.Description)
	}
	return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
}

// Started announces the start of a target's run.
func (n *Notifier) Started(ctx context.Context, target, mode string) error {
	return n.Send(ctx, fmt.Sprintf("🚀 *Scan Started* on `%s` | Mode: `%s`", target, mode))
}

// Finished announces a completed run and its finding count.
func (n *Notifier) Finished(ctx context.Context, report *model.RunReport) error {
	return n.Send(ctx, fmt.Sprintf("✅ *Scan Finished* for `%s` (%d findings, %s)",
		report.Target, len(report.Findings), report.Duration().Round(time.Second)))
}

// Failed announces a run that ended early, with reason as the cause.
func (n *Notifier) Failed(ctx context.Context, target, reason string) error {
	return n.Send(ctx, fmt.Sprintf("❌ *Scan Failed* for `%s`: %s", target, reason))
}

// Alert reports a findings stage that produced results.
func (n *Notifier) Alert(ctx context.Context, f model.Finding) error {
	return n.Send(ctx, fmt.Sprintf(
		"🚨 *AutoKuro Alert* 🚨\n\n🎯 Target: `%s`\n🛠 Stage: *%s*\n⚠️ Findings: `%d`\n📄 File: `%s`\n🔥 Severity: *%s*",
		f.Target, f.Label, f.Count, f.Artifact, f.Severity,
	))
}

// Report sends the final notification for a run: Finished for completed
// runs and Failed otherwise. Delivery errors are logged, not returned.
func (n *Notifier) Report(ctx context.Context, report *model.RunReport) {
	if !n.Enabled() || report == nil {
		return
	}

	var err error
	switch report.Status {
	case model.RunCompleted:
		err = n.Finished(ctx, report)
	case model.RunNoViableTarget:
		err = n.Failed(ctx, report.Target, "no live hosts found")
	default:
		reason := string(report.Status)
		if report.Error != "" {
			reason = securelog.Scrub(report.Error)
		}
		err = n.Failed(ctx, report.Target, reason)
	}
	if err != nil {
		n.logger.Warn("failed to send notification", "target", report.Target, "error", err)
	}
}
