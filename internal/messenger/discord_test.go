package messenger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
)

type capturedRequest struct {
	method      string
	path        string
	auth        string
	contentType string
	body        []byte
}

func discordServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.contentType = r.Header.Get("Content-Type")
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	return ts, captured
}

func newTestClient(t *testing.T, baseURL string) *DiscordClient {
	t.Helper()
	client, err := NewDiscordClient("bot-token", WithBaseURL(baseURL))
	require.NoError(t, err)
	return client
}

func TestSendMessage(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "m1"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	require.NoError(t, client.SendMessage(context.Background(), "c1", "hello"))

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/channels/c1/messages", captured.path)
	assert.Equal(t, "Bot bot-token", captured.auth)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	assert.Equal(t, "hello", payload["content"])
}

func TestSendMessageValidation(t *testing.T) {
	client := newTestClient(t, "https://discord.invalid")

	err := client.SendMessage(context.Background(), "", "hello")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

	err = client.SendMessage(context.Background(), "c1", "")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestSendImageDataURI(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "m1"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	err := client.SendImage(context.Background(), "c1", "data:image/png;base64,aGk=", "Here is your confirmation")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(captured.contentType, "multipart/form-data"))
	body := string(captured.body)
	assert.Contains(t, body, `name="files[0]"; filename="confirmation.png"`)
	assert.Contains(t, body, "Here is your confirmation")
	assert.Contains(t, body, "hi") // decoded aGk=
}

func TestSendImageURLBecomesEmbed(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "m1"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	require.NoError(t, client.SendImage(context.Background(), "c1", "https://cdn.example.com/proof.png", "proof"))

	var payload struct {
		Content string `json:"content"`
		Embeds  []struct {
			Image struct {
				URL string `json:"url"`
			} `json:"image"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "https://cdn.example.com/proof.png", payload.Embeds[0].Image.URL)
	assert.Equal(t, "proof", payload.Content)
}

func TestSendImageUnparseableFallsBackToText(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "m1"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	require.NoError(t, client.SendImage(context.Background(), "c1", "not-a-data-uri", "caption text"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	assert.Equal(t, "caption text", payload["content"])
}

func TestSendFiles(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "m1"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	err := client.SendFiles(context.Background(), "c1", []File{
		{Content: []byte("pdf bytes"), Filename: "report.pdf", ContentType: "application/pdf"},
		{Content: []byte("raw")},
	}, "your files")
	require.NoError(t, err)

	body := string(captured.body)
	assert.Contains(t, body, `filename="report.pdf"`)
	assert.Contains(t, body, `filename="attachment-2"`)
	assert.Contains(t, body, "application/octet-stream")
}

func TestOpenDM(t *testing.T) {
	ts, captured := discordServer(t, http.StatusOK, `{"id": "dm-42"}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	channelID, err := client.OpenDM(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "dm-42", channelID)
	assert.Equal(t, "/users/@me/channels", captured.path)
	assert.Contains(t, string(captured.body), `"recipient_id":"user-1"`)
}

func TestErrorSurfacesDiscordMessage(t *testing.T) {
	ts, _ := discordServer(t, http.StatusForbidden, `{"message": "Missing Access", "code": 50001}`)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	err := client.SendMessage(context.Background(), "c1", "hello")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "Missing Access")
}

func TestNewDiscordClientRequiresToken(t *testing.T) {
	_, err := NewDiscordClient("")
	require.Error(t, err)
}
