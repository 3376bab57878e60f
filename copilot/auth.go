// Package copilot implements GitHub Copilot OAuth authentication using the
// device code flow (RFC 8628):
//  1. Request device code from GitHub
//  2. User visits verification URL and enters the user code
//  3. Poll for access token until authorized
//  4. Use access token with the Copilot API (OpenAI-compatible)
//
// Tokens are kept in the textkey credential store.
package copilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/minios-linux/textkey/settings"
)

const (
	// clientID is the GitHub OAuth app client ID used for Copilot access.
	clientID = "Ov23li8tweQw6odWQebz"

	DefaultDeviceCodeURL  = "https://github.com/login/device/code"
	DefaultAccessTokenURL = "https://github.com/login/oauth/access_token"

	// CopilotAPIBase is the OpenAI-compatible Copilot API.
	CopilotAPIBase = "https://api.githubcopilot.com"

	oauthScope = "read:user"

	// ProviderID is the key used in the credential store.
	ProviderID = "copilot"
)

var (
	// ErrExpired is returned when the device code expires before approval.
	ErrExpired = errors.New("device code expired, please try again")
	// ErrDenied is returned when the user rejects the authorization.
	ErrDenied = errors.New("authorization denied by user")
)

// ---------------------------------------------------------------------------
// Token access
// ---------------------------------------------------------------------------

// LoadToken returns the stored token, or nil.
func LoadToken() *settings.Info {
	return settings.GetOAuth(ProviderID)
}

// SaveToken saves a Copilot OAuth token.
func SaveToken(access string) error {
	return settings.SetOAuth(ProviderID, access, "", 0)
}

// DeleteToken removes the Copilot credentials.
func DeleteToken() error {
	return settings.Remove(ProviderID)
}

// TokenStatus returns a human-readable status of the stored token.
func TokenStatus() string {
	info := LoadToken()
	if info == nil {
		return "not authenticated"
	}
	return fmt.Sprintf("authenticated (token: %s)", settings.MaskKey(info.Access))
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client runs the device flow against configurable endpoints.
type Client struct {
	HTTPClient     *http.Client
	DeviceCodeURL  string
	AccessTokenURL string
	// MinInterval is the lower bound of the polling interval. GitHub asks
	// for at least 5 seconds.
	MinInterval time.Duration
	// Margin is added to every poll interval.
	Margin time.Duration
	// Out receives the interactive instructions. Defaults to os.Stderr.
	Out io.Writer
}

// NewClient returns a client for github.com.
func NewClient() *Client {
	return &Client{
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		DeviceCodeURL:  DefaultDeviceCodeURL,
		AccessTokenURL: DefaultAccessTokenURL,
		MinInterval:    5 * time.Second,
		Margin:         3 * time.Second,
		Out:            os.Stderr,
	}
}

func (c *Client) out() io.Writer {
	if c.Out == nil {
		return os.Stderr
	}
	return c.Out
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
	Interval    int    `json:"interval"`
}

// DeviceCodeFlow runs the device flow and stores the resulting token.
// onPrompt is called with the verification URL and user code.
func (c *Client) DeviceCodeFlow(ctx context.Context, onPrompt func(verificationURI, userCode string)) (string, error) {
	dc, err := c.requestDeviceCode(ctx)
	if err != nil {
		return "", fmt.Errorf("requesting device code: %w", err)
	}
	if onPrompt != nil {
		onPrompt(dc.VerificationURI, dc.UserCode)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval < c.MinInterval {
		interval = c.MinInterval
	}
	interval += c.Margin
	expiry := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		if time.Now().After(expiry) {
			return "", ErrExpired
		}

		at, err := c.pollAccessToken(ctx, dc.DeviceCode)
		if err != nil {
			return "", fmt.Errorf("polling access token: %w", err)
		}

		switch at.Error {
		case "":
			if err := SaveToken(at.AccessToken); err != nil {
				return at.AccessToken, fmt.Errorf("token obtained but failed to save: %w", err)
			}
			return at.AccessToken, nil
		case "authorization_pending":
			continue
		case "slow_down":
			// RFC 8628: add 5 seconds
			interval += 5 * time.Second
			continue
		case "expired_token":
			return "", ErrExpired
		case "access_denied":
			return "", ErrDenied
		default:
			desc := at.ErrorDesc
			if desc == "" {
				desc = at.Error
			}
			return "", fmt.Errorf("authorization failed: %s", desc)
		}
	}
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) requestDeviceCode(ctx context.Context) (*deviceCodeResponse, error) {
	body, status, err := c.postJSON(ctx, c.DeviceCodeURL, map[string]string{
		"client_id": clientID,
		"scope":     oauthScope,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GitHub returned status %d: %s", status, string(body))
	}

	var dc deviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, fmt.Errorf("invalid device code response: %s", string(body))
	}
	return &dc, nil
}

func (c *Client) pollAccessToken(ctx context.Context, deviceCode string) (*accessTokenResponse, error) {
	body, _, err := c.postJSON(ctx, c.AccessTokenURL, map[string]string{
		"client_id":   clientID,
		"device_code": deviceCode,
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
	})
	if err != nil {
		return nil, err
	}
	var at accessTokenResponse
	if err := json.Unmarshal(body, &at); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &at, nil
}

// EnsureAuth returns the stored token, or runs the device flow when there
// is none.
func (c *Client) EnsureAuth(ctx context.Context) (string, error) {
	if info := LoadToken(); info != nil {
		return info.Access, nil
	}

	w := c.out()
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "GitHub Copilot authentication required.")
	fmt.Fprintln(w, "Starting device code flow...")
	fmt.Fprintln(w, "")

	token, err := c.DeviceCodeFlow(ctx, func(verificationURI, userCode string) {
		fmt.Fprintln(w, "  1. Open this URL in your browser:")
		fmt.Fprintf(w, "     %s\n\n", verificationURI)
		fmt.Fprintln(w, "  2. Enter this code:")
		fmt.Fprintf(w, "     %s\n\n", userCode)
		fmt.Fprintln(w, "  Waiting for authorization...")
	})
	if err != nil {
		return "", err
	}

	fmt.Fprintln(w, "  Authentication successful!")
	fmt.Fprintln(w, "")
	return token, nil
}

// SetAuthHeaders sets the headers the Copilot API requires on every request.
func SetAuthHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", "textkey/1.0")
	req.Header.Set("Openai-Intent", "conversation-edits")
	req.Header.Set("X-Initiator", "user")
	req.Header.Del("x-api-key")
}
