// Package notify delivers per-symbol analysis messages.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	maxMessageLen   = 4096
)

// Telegram sends messages through the Bot API. A chart goes out as a photo
// with the message as caption; if that fails the text is sent alone.
type Telegram struct {
	token  string
	chatID string
	http   *api.Client
	log    *logger.Logger
}

var _ interfaces.Notifier = (*Telegram)(nil)

// TelegramOption configures the notifier.
type TelegramOption func(*telegramOptions)

type telegramOptions struct {
	baseURL  string
	proxyURL string
}

// WithBaseURL points the notifier at another Bot API host.
func WithBaseURL(u string) TelegramOption {
	return func(o *telegramOptions) { o.baseURL = u }
}

// WithProxy routes Bot API traffic through an HTTP proxy.
func WithProxy(proxyURL string) TelegramOption {
	return func(o *telegramOptions) { o.proxyURL = proxyURL }
}

// NewTelegram creates a notifier. The request logger of the underlying
// client is left silent because Bot API URLs embed the token.
func NewTelegram(token, chatID string, log *logger.Logger, opts ...TelegramOption) *Telegram {
	o := telegramOptions{baseURL: telegramBaseURL}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []api.ClientOption{api.WithBaseURL(o.baseURL), api.WithTimeout(30 * time.Second)}
	if o.proxyURL != "" {
		if u, err := url.Parse(o.proxyURL); err == nil {
			clientOpts = append(clientOpts, api.WithTransport(&http.Transport{Proxy: http.ProxyURL(u)}))
		}
	}

	return &Telegram{token: token, chatID: chatID, http: api.NewClient(clientOpts...), log: log}
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers message with the image at imagePath. A missing image is
// reported inline in the text message.
func (t *Telegram) Send(ctx context.Context, message, imagePath string) error {
	if imagePath == "" {
		return t.sendMessage(ctx, message)
	}

	img, err := os.ReadFile(imagePath)
	if errors.Is(err, os.ErrNotExist) {
		t.log.Error(ctx, "Image file not found", "path", imagePath)
		return t.sendMessage(ctx, fmt.Sprintf("%s\n\n⚠️ Image file not found: %s", message, imagePath))
	}
	if err != nil {
		t.log.ErrorWithErr(ctx, "Failed to read chart image", err, "path", imagePath)
		return t.sendMessage(ctx, message+"\n\n⚠️ An unexpected error occurred.")
	}

	if err := t.sendPhoto(ctx, message, filepath.Base(imagePath), img); err != nil {
		t.log.Warn(ctx, "Telegram photo send failed, sending text only", "error", err, "chat_id", t.chatID)
		return t.sendMessage(ctx, message)
	}
	t.log.Info(ctx, "Sent analysis with image to Telegram", "chat_id", t.chatID, "image", imagePath)
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	text = truncateUTF8(text, maxMessageLen)
	resp, err := t.http.POST(ctx, "/bot"+t.token+"/sendMessage", map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if err := checkBotResponse(resp); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.log.Info(ctx, "Message sent to Telegram", "chat_id", t.chatID)
	return nil
}

func (t *Telegram) sendPhoto(ctx context.Context, caption, filename string, img []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	if err := w.WriteField("caption", caption); err != nil {
		return err
	}
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(img); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req := api.NewRequest(http.MethodPost, "/bot"+t.token+"/sendPhoto").
		WithContext(ctx).
		WithRawBody(body.Bytes(), w.FormDataContentType())
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	return checkBotResponse(resp)
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func checkBotResponse(resp *api.Response) error {
	var r botResponse
	if err := resp.ParseJSON(&r); err != nil {
		return err
	}
	if !r.OK {
		return fmt.Errorf("bot api rejected request: %s", r.Description)
	}
	return nil
}

// Noop logs messages instead of delivering them.
type Noop struct {
	log *logger.Logger
}

var _ interfaces.Notifier = (*Noop)(nil)

func NewNoop(log *logger.Logger) *Noop {
	return &Noop{log: log}
}

func (n *Noop) Send(ctx context.Context, message, imagePath string) error {
	n.log.Info(ctx, "Notification suppressed", "image", imagePath, "message", message)
	return nil
}
