// Package telegram delivers operational alerts, such as a queue backlog
// found before ranking, to a chat through the Telegram bot API. It is one of
// the alert channels the application fans out to.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BookMentions/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// ErrMisconfigured is returned when the bot token or chat id is missing.
var ErrMisconfigured = errors.New("telegram notifier misconfigured")

// Queue names and request URLs routinely carry characters that legacy
// Markdown treats as formatting.
var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// Notifier posts alerts to one chat. The subject is rendered bold and the
// body, one finding per line, follows verbatim.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Alert sends subject and body as one message. A rejected message returns
// the API's description so a bad chat id or token is visible in the logs.
func (n *Notifier) Alert(ctx context.Context, subject, body string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return ErrMisconfigured
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", fmt.Sprintf("*%s*\n%s", markdownEscaper.Replace(subject), markdownEscaper.Replace(body)))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var out apiResponse
		if json.NewDecoder(resp.Body).Decode(&out) == nil && out.Description != "" {
			return fmt.Errorf("telegram alert rejected (%s): %s", resp.Status, out.Description)
		}
		return fmt.Errorf("telegram alert rejected: %s", resp.Status)
	}

	return nil
}
