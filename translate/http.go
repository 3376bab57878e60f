package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minios-linux/textkey/copilot"
)

// ---------------------------------------------------------------------------
// Rate limit state (shared pause for concurrent requests)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client with proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// --proxy wins over HTTP_PROXY/HTTPS_PROXY
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

var (
	// defaultRetryDelay is used when a 429 reply carries no hint.
	defaultRetryDelay = 60 * time.Second
	// retryBuffer is added to every server-provided delay.
	retryBuffer = 5 * time.Second
)

// parseRetryDelay extracts the retry delay from a 429 reply: Google's
// RetryInfo detail first, then the Retry-After header (seconds).
func parseRetryDelay(body []byte, header http.Header) time.Duration {
	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if json.Unmarshal(body, &errResp) == nil {
		for _, detail := range errResp.Error.Details {
			if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
				// "30s", "45.123s"
				d := strings.TrimSuffix(detail.RetryDelay, "s")
				if secs, err := strconv.ParseFloat(d, 64); err == nil {
					return time.Duration(secs*1000)*time.Millisecond + retryBuffer
				}
			}
		}
	}

	if header != nil {
		if secs, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After"))); err == nil && secs >= 0 {
			return time.Duration(secs)*time.Second + retryBuffer
		}
	}
	return defaultRetryDelay + retryBuffer
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// ---------------------------------------------------------------------------
// OpenAI-compatible chat completions over plain HTTP
// (Groq, Ollama, custom endpoints, Copilot)
// ---------------------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatTranslator struct {
	opts     Options
	locales  []string
	system   string
	endpoint string
	client   *http.Client
	rl       *rateLimitState

	// authorize sets credentials on a request.
	authorize func(ctx context.Context, req *http.Request) error
	// reauth is called once on a 401. Nil means no second chance.
	reauth func(ctx context.Context) error
}

func chatEndpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func newChatTranslator(opts Options) *chatTranslator {
	locales := opts.effectiveLocales()
	t := &chatTranslator{
		opts:     opts,
		locales:  locales,
		system:   SystemPrompt(locales, opts.SystemPrompt),
		endpoint: chatEndpoint(opts.Provider.BaseURL),
		client:   opts.httpClient(),
		rl:       &rateLimitState{},
	}
	key := opts.Provider.APIKey
	t.authorize = func(_ context.Context, req *http.Request) error {
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		return nil
	}
	return t
}

// newCopilotTranslator authenticates lazily through the device flow and
// retries once with a fresh token after a 401.
func newCopilotTranslator(opts Options) *chatTranslator {
	if opts.Provider.BaseURL == "" {
		opts.Provider.BaseURL = copilot.CopilotAPIBase
	}
	t := newChatTranslator(opts)
	auth := opts.Copilot
	if auth == nil {
		auth = copilot.NewClient()
	}

	var mu sync.Mutex
	var token string
	t.authorize = func(ctx context.Context, req *http.Request) error {
		mu.Lock()
		defer mu.Unlock()
		if token == "" {
			tok, err := auth.EnsureAuth(ctx)
			if err != nil {
				return fmt.Errorf("%w: Copilot: %w", ErrAuthentication, err)
			}
			token = tok
		}
		copilot.SetAuthHeaders(req, token)
		return nil
	}
	t.reauth = func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		token = ""
		return copilot.DeleteToken()
	}
	return t
}

func (t *chatTranslator) Translate(ctx context.Context, text string) (*Result, error) {
	content, err := t.complete(ctx, text)
	if err != nil {
		return nil, err
	}
	return ParseResult(content, t.locales)
}

func (t *chatTranslator) complete(ctx context.Context, text string) (string, error) {
	prov := t.opts.Provider
	req := chatRequest{
		Model: prov.Model,
		Messages: []chatMessage{
			{Role: "system", Content: t.system},
			{Role: "user", Content: text},
		},
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	maxRetries := t.opts.effectiveMaxRetries()
	base := t.opts.effectiveBackoff()
	reauthed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait if another request hit the rate limit
		if err := t.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if err := t.authorize(ctx, httpReq); err != nil {
			return "", err
		}

		t.opts.log("[DEBUG] %s attempt %d: POST %s (model: %s)", prov.Name, attempt+1, t.endpoint, prov.Model)

		resp, err := t.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < maxRetries {
				if err := sleep(ctx, backoff(base, attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("%w: %s: %w", ErrConnection, prov.Name, err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return extractContent(respBody)

		case resp.StatusCode == http.StatusUnauthorized && t.reauth != nil && !reauthed:
			t.opts.log("[WARN] %s returned 401, re-authenticating", prov.Name)
			reauthed = true
			if err := t.reauth(ctx); err != nil {
				return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
			}
			attempt--
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			retryDelay := parseRetryDelay(respBody, resp.Header)
			t.opts.log("[WARN] %s 429 rate limited, waiting %v (attempt %d/%d)", prov.Name, retryDelay, attempt+1, maxRetries)
			if attempt < maxRetries {
				t.rl.pause(retryDelay)
				if err := sleep(ctx, retryDelay); err != nil {
					return "", err
				}
				t.rl.unpause()
				continue
			}
			return "", apiErrorFromBody(prov.Name, resp.StatusCode, respBody)

		case resp.StatusCode >= 500 && attempt < maxRetries:
			if err := sleep(ctx, backoff(base, attempt)); err != nil {
				return "", err
			}
			continue
		}

		return "", apiErrorFromBody(prov.Name, resp.StatusCode, respBody)
	}

	return "", fmt.Errorf("%w: %s: exhausted all %d retries", ErrConnection, prov.Name, maxRetries)
}

// extractContent returns the first choice's message.
func extractContent(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v (body: %s)", ErrBadResponse, err, truncate(string(body), 200))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrBadResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
