package vk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/Edd-G/vkgate/pkg/config"
	"github.com/Edd-G/vkgate/pkg/logger"
)

const clientCallTimeout = 15 * time.Second

// APIError is a failed VK API call: either a non-200 HTTP status or an
// error envelope in the response body.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("vk api http status %d", e.StatusCode)
}

// User is a platform user profile from users.get.
type User struct {
	ID         int64
	FirstName  string
	LastName   string
	ScreenName string
	Raw        map[string]interface{}
}

// Client calls the VK API. Every call carries the configured access token,
// API version and language, and passes through a rate limiter sized from
// configuration.
type Client struct {
	cfg        config.VKConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.VKConfig) *Client {
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 20
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: clientCallTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Call posts one API method. Map- and slice-valued parameters are
// JSON-encoded, everything else is string-coerced.
func (c *Client) Call(ctx context.Context, method string, params map[string]interface{}) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	form := url.Values{}
	for key, value := range params {
		s, err := paramString(value)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encode parameter %s: %w", key, err)
		}
		form.Set(key, s)
	}
	form.Set("access_token", c.cfg.AccessToken)
	form.Set("v", c.cfg.APIVersion)
	form.Set("lang", c.cfg.Lang)

	endpoint := strings.TrimSuffix(c.cfg.APIBase, "/") + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode}
	}

	root := gjson.ParseBytes(body)
	if apiErr := root.Get("error"); apiErr.Exists() {
		return gjson.Result{}, &APIError{
			StatusCode: resp.StatusCode,
			Code:       int(apiErr.Get("error_code").Int()),
			Message:    apiErr.Get("error_msg").String(),
		}
	}

	logger.DebugCF("vk", "API call succeeded", map[string]interface{}{
		"method": method,
	})
	return root.Get("response"), nil
}

// SendMessage posts a payload built by BuildSendPayload to messages.send.
func (c *Client) SendMessage(ctx context.Context, payload map[string]interface{}) error {
	_, err := c.Call(ctx, "messages.send", payload)
	return err
}

// SendTyping shows the typing indicator in the target conversation.
func (c *Client) SendTyping(ctx context.Context, peerID int64) error {
	_, err := c.Call(ctx, "messages.setActivity", map[string]interface{}{
		"user_id": c.cfg.GroupID,
		"type":    "typing",
		"peer_id": peerID,
	})
	return err
}

// GetUser looks up a user profile.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	resp, err := c.Call(ctx, "users.get", map[string]interface{}{
		"user_ids": userID,
		"fields":   "screen_name, city, contacts",
	})
	if err != nil {
		return nil, err
	}

	first := resp.Get("0")
	if !first.Exists() {
		return nil, fmt.Errorf("vk: users.get returned no profiles")
	}

	raw, _ := first.Value().(map[string]interface{})
	return &User{
		ID:         first.Get("id").Int(),
		FirstName:  first.Get("first_name").String(),
		LastName:   first.Get("last_name").String(),
		ScreenName: first.Get("screen_name").String(),
		Raw:        raw,
	}, nil
}

func paramString(v interface{}) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case map[string]interface{}, []interface{}:
		return encodeJSON(value)
	default:
		return fmt.Sprint(value), nil
	}
}
