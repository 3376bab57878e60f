package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiTranslator calls the Gemini API through the genai SDK with a JSON
// response schema. The SDK does not retry, so the loop here does.
type geminiTranslator struct {
	opts    Options
	locales []string
	client  *genai.Client
	config  *genai.GenerateContentConfig
	rl      *rateLimitState
}

func newGeminiTranslator(ctx context.Context, opts Options) (*geminiTranslator, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opts.Provider.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.httpClient(),
	}
	if opts.Provider.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.Provider.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	locales := opts.effectiveLocales()
	return &geminiTranslator{
		opts:    opts,
		locales: locales,
		client:  client,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt(locales, opts.SystemPrompt), genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    geminiSchema(locales),
			Temperature:       genai.Ptr[float32](0.3),
		},
		rl: &rateLimitState{},
	}, nil
}

func (t *geminiTranslator) Translate(ctx context.Context, text string) (*Result, error) {
	prov := t.opts.Provider
	maxRetries := t.opts.effectiveMaxRetries()
	base := t.opts.effectiveBackoff()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := t.rl.waitIfPaused(ctx); err != nil {
			return nil, err
		}

		t.opts.log("[DEBUG] %s attempt %d: generateContent (model: %s)", prov.Name, attempt+1, prov.Model)

		resp, err := t.client.Models.GenerateContent(ctx, prov.Model, genai.Text(text), t.config)
		if err == nil {
			content := resp.Text()
			if strings.TrimSpace(content) == "" {
				return nil, fmt.Errorf("%w: empty completion", ErrBadResponse)
			}
			return ParseResult(content, t.locales)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = classify(prov.Name, err)
		if !retryable(lastErr) || attempt == maxRetries {
			break
		}

		wait := backoff(base, attempt)
		if errors.Is(lastErr, ErrRateLimited) {
			t.opts.log("[WARN] %s 429 rate limited, waiting %v (attempt %d/%d)", prov.Name, wait, attempt+1, maxRetries)
			t.rl.pause(wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		t.rl.unpause()
	}
	return nil, lastErr
}

// retryable reports whether a classified error may succeed on a new attempt.
func retryable(err error) bool {
	if errors.Is(err, ErrConnection) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusInternalServerError
}
