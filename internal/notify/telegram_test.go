package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
)

type botServer struct {
	mu        sync.Mutex
	photos    []map[string]string
	messages  []string
	failPhoto bool
}

func (b *botServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch r.URL.Path {
		case "/botTOKEN/sendPhoto":
			if b.failPhoto {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"ok":false,"description":"Bad Request: message caption is too long"}`))
				return
			}
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f, _, err := r.FormFile("photo")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			b.photos = append(b.photos, map[string]string{
				"chat_id": r.FormValue("chat_id"),
				"caption": r.FormValue("caption"),
				"photo":   string(data),
			})
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "42", payload["chat_id"])
			b.messages = append(b.messages, payload["text"])
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	})
}

func newTestTelegram(t *testing.T, b *botServer) *Telegram {
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	return NewTelegram("TOKEN", "42", logger.Nop(), WithBaseURL(srv.URL))
}

func writeImage(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "BTCUSDT-10-00-00.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestSendPhotoWithCaption(t *testing.T) {
	b := &botServer{}
	tg := newTestTelegram(t, b)

	require.NoError(t, tg.Send(context.Background(), "BTCUSDT - Buy", writeImage(t)))
	require.Len(t, b.photos, 1)
	assert.Equal(t, "42", b.photos[0]["chat_id"])
	assert.Equal(t, "BTCUSDT - Buy", b.photos[0]["caption"])
	assert.Equal(t, "png-bytes", b.photos[0]["photo"])
	assert.Empty(t, b.messages)
}

func TestSendFallsBackToText(t *testing.T) {
	b := &botServer{failPhoto: true}
	tg := newTestTelegram(t, b)

	require.NoError(t, tg.Send(context.Background(), "ETHUSDT - Hold", writeImage(t)))
	assert.Equal(t, []string{"ETHUSDT - Hold"}, b.messages)
}

func TestSendMissingImage(t *testing.T) {
	b := &botServer{}
	tg := newTestTelegram(t, b)

	require.NoError(t, tg.Send(context.Background(), "SOLUSDT - Sell", "/nope/missing.png"))
	require.Len(t, b.messages, 1)
	assert.Equal(t, "SOLUSDT - Sell\n\n⚠️ Image file not found: /nope/missing.png", b.messages[0])
}

func TestSendTextOnly(t *testing.T) {
	b := &botServer{}
	tg := newTestTelegram(t, b)

	require.NoError(t, tg.Send(context.Background(), "no chart", ""))
	assert.Equal(t, []string{"no chart"}, b.messages)
}

func TestSendReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42", logger.Nop(), WithBaseURL(srv.URL))
	assert.Error(t, tg.Send(context.Background(), "text", ""))
}

func TestNoopNeverFails(t *testing.T) {
	assert.NoError(t, NewNoop(logger.Nop()).Send(context.Background(), "m", "x.png"))
}
