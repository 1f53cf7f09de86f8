package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Talk statuses reported by the rendering service.
const (
	talkCreated  = "created"
	talkStarted  = "started"
	talkDone     = "done"
	talkError    = "error"
	talkRejected = "rejected"
)

// TalkStatus is the outcome of one status poll against the rendering
// service.
type TalkStatus struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
}

// HTTPStatusError captures non-2xx responses from the rendering service.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("avatar: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type createTalkRequest struct {
	Script    talkScript `json:"script"`
	SourceURL string     `json:"source_url"`
	Config    talkConfig `json:"config"`
}

type talkScript struct {
	Type     string       `json:"type"`
	Input    string       `json:"input"`
	Provider talkProvider `json:"provider"`
}

type talkProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkConfig struct {
	Fluent   bool    `json:"fluent"`
	PadAudio float64 `json:"pad_audio"`
}

type createTalkResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client is a focused client for the talking-head rendering API. It only
// knows how to create a talk and fetch its status; all retry and
// lifecycle logic lives in the Orchestrator.
type Client struct {
	baseURL    string
	apiKey     string
	voiceID    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithVoice(voiceID string) ClientOption {
	return func(c *Client) {
		c.voiceID = voiceID
	}
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("avatar: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		voiceID:    "en-US-JennyNeural",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateTalk submits a rendering request for the given source image and
// script text and returns the opaque job identifier assigned by the
// service.
func (c *Client) CreateTalk(ctx context.Context, imageURL, text string) (string, error) {
	body, err := json.Marshal(createTalkRequest{
		Script: talkScript{
			Type:  "text",
			Input: text,
			Provider: talkProvider{
				Type:    "microsoft",
				VoiceID: c.voiceID,
			},
		},
		SourceURL: imageURL,
		Config:    talkConfig{Fluent: false, PadAudio: 0.0},
	})
	if err != nil {
		return "", fmt.Errorf("avatar: marshal create request: %w", err)
	}

	url := c.baseURL + "/talks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("avatar: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", err
	}

	var payload createTalkResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("avatar: decode create response: %w", err)
	}
	if payload.ID == "" {
		return "", errors.New("avatar: create response missing talk id")
	}
	return payload.ID, nil
}

// GetTalkStatus fetches the current status of a previously created talk.
func (c *Client) GetTalkStatus(ctx context.Context, talkID string) (TalkStatus, error) {
	url := c.baseURL + "/talks/" + talkID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TalkStatus{}, fmt.Errorf("avatar: status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return TalkStatus{}, err
	}

	var payload TalkStatus
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TalkStatus{}, fmt.Errorf("avatar: decode status response: %w", err)
	}
	return payload, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("avatar: read response body: %w", err)
	}
	return buf, nil
}
