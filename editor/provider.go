package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/minios-linux/textkey/config"
	"github.com/minios-linux/textkey/settings"
	"github.com/minios-linux/textkey/translate"
)

// TranslatorFactory builds the translator for a loaded configuration.
type TranslatorFactory func(ctx context.Context, cfg *config.Config) (translate.Translator, error)

// Overrides are command-line settings that win over .textkey.yaml.
type Overrides struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Proxy      string
	Timeout    time.Duration
	MaxRetries int
	Verbose    bool
	OnLog      func(format string, args ...any)
}

// ProviderFor resolves the provider settings: flag, then config, then the
// credential store, then the provider defaults.
func (o Overrides) ProviderFor(cfg *config.Config) (translate.Provider, error) {
	id := cfg.Provider
	if o.Provider != "" {
		id = o.Provider
	}
	prov, ok := translate.DefaultProviders()[id]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q (available: %v)", id, translate.ProviderIDs())
	}

	switch {
	case o.Model != "":
		prov.Model = o.Model
	case cfg.Model != "":
		prov.Model = cfg.Model
	}

	switch {
	case o.BaseURL != "":
		prov.BaseURL = o.BaseURL
	case cfg.BaseURL != "":
		prov.BaseURL = cfg.BaseURL
	default:
		if stored := settings.GetBaseURL(id); stored != "" {
			prov.BaseURL = stored
		}
	}

	prov.APIKey = settings.APIKey(id, o.APIKey)
	prov.Proxy = o.Proxy
	if o.Timeout > 0 {
		prov.Timeout = o.Timeout
	}
	return prov, nil
}

// Factory returns a TranslatorFactory applying these overrides.
func (o Overrides) Factory() TranslatorFactory {
	return func(ctx context.Context, cfg *config.Config) (translate.Translator, error) {
		prov, err := o.ProviderFor(cfg)
		if err != nil {
			return nil, err
		}
		return translate.New(ctx, translate.Options{
			Provider:     prov,
			Locales:      cfg.Locales,
			SystemPrompt: cfg.Prompt,
			MaxRetries:   o.MaxRetries,
			Verbose:      o.Verbose,
			OnLog:        o.OnLog,
		})
	}
}
