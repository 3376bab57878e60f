package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/minios-linux/textkey/keyname"
	"github.com/minios-linux/textkey/langmeta"
	"github.com/minios-linux/textkey/translate"
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Locales) == 0 {
		result = multierror.Append(result, fmt.Errorf("locales: at least one locale is required"))
	}
	seen := make(map[string]bool, len(c.Locales))
	for _, loc := range c.Locales {
		switch {
		case seen[loc]:
			result = multierror.Append(result, fmt.Errorf("locales: %q is listed twice", loc))
		case !langmeta.Known(loc):
			result = multierror.Append(result, fmt.Errorf("locales: unknown language %q", loc))
		case !keyname.Valid("texts_" + loc):
			// The section is declared as texts_<locale>.
			result = multierror.Append(result, fmt.Errorf("locales: %q cannot be used in a TypeScript identifier (try %q)",
				loc, strings.ReplaceAll(loc, "-", "_")))
		}
		seen[loc] = true
	}

	if !keyname.Valid(c.TypeName) {
		result = multierror.Append(result, fmt.Errorf("type_name: %q is not an identifier", c.TypeName))
	}
	if !keyname.Valid(c.ValueType) {
		result = multierror.Append(result, fmt.Errorf("value_type: %q is not an identifier", c.ValueType))
	}

	if _, ok := translate.DefaultProviders()[c.Provider]; !ok {
		result = multierror.Append(result, fmt.Errorf("provider: unknown provider %q (available: %s)",
			c.Provider, strings.Join(translate.ProviderIDs(), ", ")))
	}
	if c.MaxConcurrent != nil && *c.MaxConcurrent < 1 {
		result = multierror.Append(result, fmt.Errorf("max_concurrent: must be at least 1, got %d", *c.MaxConcurrent))
	}
	if err := c.References.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("references: %w", err))
	}

	return result.ErrorOrNil()
}
