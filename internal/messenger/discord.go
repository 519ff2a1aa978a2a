package messenger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
)

const defaultDiscordAPI = "https://discord.com/api/v10"

var dataURIPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.+)$`)

// DiscordClient sends messages through the Discord REST API with a bot
// token. It implements Messenger and DMOpener.
type DiscordClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type DiscordOption func(*DiscordClient)

// WithBaseURL points the client at a different API root (tests).
func WithBaseURL(baseURL string) DiscordOption {
	return func(c *DiscordClient) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) DiscordOption {
	return func(c *DiscordClient) { c.httpClient = hc }
}

func NewDiscordClient(token string, opts ...DiscordOption) (*DiscordClient, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("bot token")
	}
	c := &DiscordClient{
		token:      token,
		baseURL:    defaultDiscordAPI,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *DiscordClient) SendMessage(ctx context.Context, channelID, text string) error {
	if channelID == "" || text == "" {
		return apperrors.MissingRequired("channel id and message content")
	}
	return c.postJSON(ctx, channelID, map[string]any{"content": text})
}

func (c *DiscordClient) SendImage(ctx context.Context, channelID, image, caption string) error {
	if channelID == "" {
		return apperrors.MissingRequired("channel id")
	}
	if image == "" {
		return apperrors.MissingRequired("image")
	}

	if strings.HasPrefix(image, "http") {
		return c.postJSON(ctx, channelID, map[string]any{
			"content": caption,
			"embeds":  []map[string]any{{"image": map[string]string{"url": image}}},
		})
	}

	match := dataURIPattern.FindStringSubmatch(image)
	if match == nil {
		fallback := caption
		if fallback == "" {
			fallback = "Confirmation image is available but could not be attached."
		}
		return c.SendMessage(ctx, channelID, fallback)
	}

	mimeType := match[1]
	content, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return apperrors.InvalidInput("image", "malformed data URI").WithCause(err)
	}
	ext := "png"
	if parts := strings.SplitN(mimeType, "/", 2); len(parts) == 2 && parts[1] != "" {
		ext = parts[1]
	}

	return c.postMultipart(ctx, channelID, caption, []File{{
		Content:     content,
		Filename:    "confirmation." + ext,
		ContentType: mimeType,
	}})
}

func (c *DiscordClient) SendFiles(ctx context.Context, channelID string, files []File, caption string) error {
	if channelID == "" {
		return apperrors.MissingRequired("channel id")
	}
	if len(files) == 0 {
		return apperrors.MissingRequired("files")
	}
	return c.postMultipart(ctx, channelID, caption, files)
}

// OpenDM creates (or reuses) the direct-message channel with a user.
func (c *DiscordClient) OpenDM(ctx context.Context, userID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"recipient_id": userID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/@me/channels", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Internal("failed to build DM request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	payload, err := c.do(req)
	if err != nil {
		return "", err
	}

	var channel struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &channel); err != nil || channel.ID == "" {
		return "", apperrors.External("discord", fmt.Errorf("DM channel response missing id"))
	}
	return channel.ID, nil
}

func (c *DiscordClient) postJSON(ctx context.Context, channelID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Internal("failed to encode message payload").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(channelID), bytes.NewReader(body))
	if err != nil {
		return apperrors.Internal("failed to build message request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *DiscordClient) postMultipart(ctx context.Context, channelID, caption string, files []File) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	payload, _ := json.Marshal(map[string]string{"content": caption})
	if err := writer.WriteField("payload_json", string(payload)); err != nil {
		return apperrors.Internal("failed to build multipart payload").WithCause(err)
	}

	for i, file := range files {
		filename := file.Filename
		if filename == "" {
			filename = fmt.Sprintf("attachment-%d", i+1)
		}
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename="%s"`, i, filename))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return apperrors.Internal("failed to build multipart part").WithCause(err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return apperrors.Internal("failed to write multipart part").WithCause(err)
		}
	}
	if err := writer.Close(); err != nil {
		return apperrors.Internal("failed to finish multipart payload").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(channelID), &buf)
	if err != nil {
		return apperrors.Internal("failed to build message request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	_, err = c.do(req)
	return err
}

func (c *DiscordClient) messagesURL(channelID string) string {
	return fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
}

func (c *DiscordClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.External("discord", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.External("discord", err)
	}

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(payload))
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &parsed) == nil && parsed.Message != "" {
			message = parsed.Message
		}
		return nil, apperrors.External("discord", fmt.Errorf("discord error %d: %s", resp.StatusCode, message))
	}
	return payload, nil
}
