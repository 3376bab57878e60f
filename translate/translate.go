// Package translate asks an AI completion service for a translation key and
// per-locale translations of a piece of UI text.
//
// Providers:
//   - openai: OpenAI Chat Completions through the official SDK, with a strict
//     JSON schema response format
//   - google: Gemini through the genai SDK, with a response schema
//   - groq, ollama, custom-openai: OpenAI-compatible chat completions over
//     plain HTTP, with retries and 429 handling
//   - copilot: GitHub Copilot (device-code OAuth, OpenAI-compatible API)
package translate

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/minios-linux/textkey/copilot"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderCopilot      = "copilot"
	ProviderCustomOpenAI = "custom-openai"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for an AI service.
type Provider struct {
	// ID is the provider identifier (openai, google, groq, ...).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL. Empty means the SDK default.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// NeedsAPIKey reports whether requests fail without an API key.
func (p Provider) NeedsAPIKey() bool {
	switch p.ID {
	case ProviderOpenAI, ProviderGoogle, ProviderGroq:
		return true
	}
	return false
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:   ProviderOpenAI,
			Name: "OpenAI",
			// Strict JSON schema output needs gpt-4o or newer.
			Model:   "gpt-4o",
			Timeout: 60 * time.Second,
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderCopilot: {
			ID:      ProviderCopilot,
			Name:    "GitHub Copilot",
			BaseURL: copilot.CopilotAPIBase,
			Model:   "gpt-4o",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
			Timeout: 120 * time.Second,
		},
	}
}

// ProviderIDs returns the known provider IDs, sorted.
func ProviderIDs() []string {
	ids := make([]string, 0, 6)
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a Translator.
type Options struct {
	// Provider is the AI provider configuration.
	Provider Provider
	// Locales are the requested translation languages, in file order.
	Locales []string
	// SystemPrompt overrides the default prompt. {{languages}} and
	// {{format}} are expanded.
	SystemPrompt string
	// Timeout is the per-request timeout (overrides provider timeout if set).
	Timeout time.Duration
	// MaxRetries is the number of retries on network errors, 5xx and 429.
	// Zero means 3; negative disables retries.
	MaxRetries int
	// RetryBackoff is the base of the exponential backoff. Default: 1s.
	RetryBackoff time.Duration
	// HTTPClient replaces the client built from Proxy and Timeout.
	HTTPClient *http.Client
	// Copilot runs the device flow for the copilot provider.
	Copilot *copilot.Client
	// OnLog emits debug messages when Verbose is set.
	OnLog func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.Verbose && o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.Provider.Timeout > 0 {
		return o.Provider.Timeout
	}
	return 120 * time.Second
}

func (o *Options) effectiveMaxRetries() int {
	switch {
	case o.MaxRetries < 0:
		return 0
	case o.MaxRetries == 0:
		return 3
	}
	return o.MaxRetries
}

func (o *Options) effectiveBackoff() time.Duration {
	if o.RetryBackoff > 0 {
		return o.RetryBackoff
	}
	return time.Second
}

func (o *Options) effectiveLocales() []string {
	if len(o.Locales) == 0 {
		return []string{"en", "fr"}
	}
	return o.Locales
}

func (o *Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return makeHTTPClient(o.Provider.Proxy, o.effectiveTimeout())
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Translator turns source text into a key and translations.
type Translator interface {
	Translate(ctx context.Context, text string) (*Result, error)
}

// New returns the Translator for opts.Provider.
func New(ctx context.Context, opts Options) (Translator, error) {
	prov := opts.Provider
	if prov.NeedsAPIKey() && prov.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for %s (use --api-key, TEXTKEY_API_KEY or 'textkey auth login')",
			ErrAuthentication, prov.Name)
	}
	if prov.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %s", prov.ID)
	}

	switch prov.ID {
	case ProviderOpenAI:
		return newOpenAITranslator(opts), nil
	case ProviderGoogle:
		return newGeminiTranslator(ctx, opts)
	case ProviderCopilot:
		return newCopilotTranslator(opts), nil
	case ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return nil, fmt.Errorf("provider %s needs a base URL (--base-url)", prov.ID)
		}
		return newChatTranslator(opts), nil
	case ProviderGroq, ProviderOllama:
		return newChatTranslator(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (available: %v)", prov.ID, ProviderIDs())
	}
}
