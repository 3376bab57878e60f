package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/textkey/copilot"
	"github.com/minios-linux/textkey/settings"
	"github.com/minios-linux/textkey/translate"
)

// ---------------------------------------------------------------------------
// auth (login / logout / list)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider authentication",
		Long: `Manage authentication credentials for the AI providers.

OAuth providers (interactive device flow):
  copilot       GitHub Copilot (device code flow)

API key providers (paste your key):
  openai        OpenAI Platform
  google        Google AI Studio (Gemini API key)
  groq          Groq Cloud (free tier available)
  custom-openai Custom OpenAI-compatible endpoint

No auth required:
  ollama        Local Ollama server

Credentials are stored in ~/.local/share/textkey/auth.json.

Examples:
  textkey auth login                         Interactive provider selection
  textkey auth login --provider copilot      OAuth with GitHub Copilot
  textkey auth login --provider openai       Store an OpenAI API key
  textkey auth logout --provider openai      Remove the OpenAI API key
  textkey auth logout                        Remove all credentials
  textkey auth list                          Show all stored credentials`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// allProviders is the ordered list of providers for the interactive menu.
var allProviders = []struct {
	id   string
	name string
	desc string
	auth string // "oauth", "api-key", "none"
}{
	{translate.ProviderOpenAI, "OpenAI", "default provider", "api-key"},
	{translate.ProviderCopilot, "GitHub Copilot", "requires a Copilot subscription", "oauth"},
	{translate.ProviderGoogle, "Google AI Studio", "Gemini API key, free tier available", "api-key"},
	{translate.ProviderGroq, "Groq Cloud", "fast inference, free tier available", "api-key"},
	{translate.ProviderCustomOpenAI, "Custom OpenAI", "any OpenAI-compatible endpoint", "api-key"},
	{translate.ProviderOllama, "Ollama", "local server, no auth needed", "none"},
}

func providerAuth(id string) (string, bool) {
	for _, p := range allProviders {
		if p.id == id {
			return p.auth, true
		}
	}
	return "", false
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an AI provider",
		Long: `Authenticate with an AI provider using OAuth or an API key.

If --provider is not specified, you will be prompted to choose.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			if provider == "" {
				id, err := chooseProvider(in, stderr)
				if err != nil {
					return err
				}
				provider = id
			}
			return runAuthLogin(cmd.Context(), in, stderr, provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to authenticate")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeAuthProviders)

	return cmd
}

func completeAuthProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	completions := make([]string, 0, len(allProviders))
	for _, p := range allProviders {
		if p.auth == "none" {
			continue
		}
		completions = append(completions, fmt.Sprintf("%s\t%s", p.id, p.name))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// chooseProvider shows the provider menu and reads the choice.
func chooseProvider(in *bufio.Scanner, w io.Writer) (string, error) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%s\n\n", blue("Select provider to authenticate:"))

	var choices []string
	for _, p := range allProviders {
		if p.auth == "none" {
			continue
		}
		choices = append(choices, p.id)
		label := "API key"
		if p.auth == "oauth" {
			label = "OAuth"
		}
		fmt.Fprintf(w, "  %d) %-16s %s (%s)\n", len(choices), p.name, p.desc, label)
	}
	fmt.Fprintf(w, "\n  Enter number [1-%d]: ", len(choices))

	if !in.Scan() {
		return "", errors.New("no input received")
	}
	n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
	if err != nil || n < 1 || n > len(choices) {
		return "", fmt.Errorf("invalid choice %q", strings.TrimSpace(in.Text()))
	}
	return choices[n-1], nil
}

func runAuthLogin(ctx context.Context, in *bufio.Scanner, w io.Writer, provider string) error {
	auth, ok := providerAuth(provider)
	if !ok {
		return fmt.Errorf("unknown provider '%s'. Run 'textkey auth list' to see providers", provider)
	}
	switch {
	case auth == "none":
		logInfo("%s needs no authentication", provider)
		return nil
	case provider == translate.ProviderCopilot:
		return authLoginCopilot(ctx, w)
	case provider == translate.ProviderCustomOpenAI:
		return authLoginCustomOpenAI(in, w)
	default:
		return authLoginAPIKey(in, w, provider)
	}
}

func authLoginCopilot(ctx context.Context, w io.Writer) error {
	if info := copilot.LoadToken(); info != nil {
		logInfo("Copilot is already authenticated (%s)", copilot.TokenStatus())
		logInfo("Run 'textkey auth logout --provider copilot' first to sign in again")
		return nil
	}

	client := copilot.NewClient()
	client.Out = w
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := client.EnsureAuth(ctx); err != nil {
		return fmt.Errorf("copilot authentication failed: %w", err)
	}
	logSuccess("GitHub Copilot authenticated!")
	fmt.Fprintf(w, "\n  You can now use: textkey add FILE --range L:C-L:C --provider copilot\n\n")
	return nil
}

func authLoginAPIKey(in *bufio.Scanner, w io.Writer, providerID string) error {
	providerInfo := map[string]struct {
		name    string
		helpURL string
	}{
		translate.ProviderOpenAI: {name: "OpenAI", helpURL: "https://platform.openai.com/api-keys"},
		translate.ProviderGoogle: {name: "Google AI Studio", helpURL: "https://aistudio.google.com/apikey"},
		translate.ProviderGroq:   {name: "Groq Cloud", helpURL: "https://console.groq.com/keys"},
	}
	info := providerInfo[providerID]

	fmt.Fprintf(w, "\n%s\n", blue(info.name+" API Key Setup"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintln(w)
	if info.helpURL != "" {
		fmt.Fprintf(w, "  Get your API key from: %s\n\n", green(info.helpURL))
	}

	existing := settings.GetAPIKey(providerID)
	if existing != "" {
		fmt.Fprintf(w, "  Current key: %s\n", yellow(settings.MaskKey(existing)))
		fmt.Fprintf(w, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(w, "  Enter API key: ")
	}

	if !in.Scan() {
		return errors.New("no input received")
	}
	key := strings.TrimSpace(in.Text())
	if key == "" {
		if existing != "" {
			logInfo("Keeping existing key")
			return nil
		}
		return errors.New("no API key provided")
	}

	if err := settings.SetAPIKey(providerID, key, ""); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	logSuccess("%s API key saved!", info.name)
	fmt.Fprintf(w, "\n  You can now use: textkey add FILE --range L:C-L:C --provider %s\n\n", providerID)
	return nil
}

func authLoginCustomOpenAI(in *bufio.Scanner, w io.Writer) error {
	fmt.Fprintf(w, "\n%s\n", blue("Custom OpenAI-Compatible Endpoint"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintln(w)

	existing := settings.Get(translate.ProviderCustomOpenAI)
	if existing != nil && existing.BaseURL != "" {
		fmt.Fprintf(w, "  Current endpoint: %s\n", yellow(existing.BaseURL))
		fmt.Fprintf(w, "  Enter new endpoint URL, or press Enter to keep: ")
	} else {
		fmt.Fprintf(w, "  Enter endpoint URL (e.g., https://api.example.com/v1): ")
	}
	if !in.Scan() {
		return errors.New("no input received")
	}
	baseURL := strings.TrimSpace(in.Text())
	if baseURL == "" && existing != nil {
		baseURL = existing.BaseURL
	}
	if baseURL == "" {
		return errors.New("endpoint URL is required")
	}

	// The key is optional for some endpoints.
	if existing != nil && existing.Key != "" {
		fmt.Fprintf(w, "  Current key: %s\n", yellow(settings.MaskKey(existing.Key)))
		fmt.Fprintf(w, "  Enter new API key, or press Enter to keep (leave empty for none): ")
	} else {
		fmt.Fprintf(w, "  Enter API key (or press Enter if not required): ")
	}
	if !in.Scan() {
		return errors.New("no input received")
	}
	apiKey := strings.TrimSpace(in.Text())
	if apiKey == "" && existing != nil {
		apiKey = existing.Key
	}

	if err := settings.SetAPIKey(translate.ProviderCustomOpenAI, apiKey, baseURL); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	logSuccess("Custom OpenAI endpoint saved!")
	fmt.Fprintf(w, "\n  You can now use: textkey add FILE --range L:C-L:C --provider custom-openai --model MODEL_NAME\n\n")
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove stored credentials for one or all providers.

If --provider is not specified, credentials for ALL providers are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to logout (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeAuthProviders)

	return cmd
}

func runAuthLogout(provider string) error {
	if provider == "" {
		if err := settings.RemoveAll(); err != nil {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		logSuccess("All stored credentials removed")
		return nil
	}

	auth, ok := providerAuth(provider)
	if !ok || auth == "none" {
		return fmt.Errorf("unknown provider '%s'. Run 'textkey auth list' to see providers", provider)
	}
	remove := func() error { return settings.Remove(provider) }
	if provider == translate.ProviderCopilot {
		remove = copilot.DeleteToken
	}
	if err := remove(); err != nil {
		return fmt.Errorf("failed to remove %s credentials: %w", provider, err)
	}
	logSuccess("%s credentials removed", provider)
	return nil
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printAuthList(stderr)
		},
	}
}

func printAuthList(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", blue("Stored Credentials"))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	fmt.Fprintf(w, "\n  %s\n", yellow("OAuth Providers"))
	fmt.Fprintf(w, "  %-14s %s\n", translate.ProviderCopilot, copilot.TokenStatus())

	fmt.Fprintf(w, "\n  %s\n", yellow("API Key Providers"))
	for _, p := range allProviders {
		if p.auth != "api-key" {
			continue
		}
		entry := settings.Get(p.id)
		switch {
		case entry != nil && entry.Key != "":
			status := fmt.Sprintf("%s (key: %s)", green("configured"), settings.MaskKey(entry.Key))
			if entry.BaseURL != "" {
				status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
			}
			fmt.Fprintf(w, "  %-14s %s\n", p.id, status)
		case entry != nil && entry.BaseURL != "":
			// custom-openai may have just a URL
			status := fmt.Sprintf("%s (no key)", green("configured"))
			status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
			fmt.Fprintf(w, "  %-14s %s\n", p.id, status)
		default:
			fmt.Fprintf(w, "  %-14s %s\n", p.id, red("not configured"))
		}
	}

	fmt.Fprintf(w, "\n  %s\n", yellow("Environment Variables"))
	names := []string{settings.EnvAPIKey}
	for _, id := range []string{translate.ProviderOpenAI, translate.ProviderGoogle, translate.ProviderGroq} {
		names = append(names, settings.EnvVarForProvider(id))
	}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			fmt.Fprintf(w, "  %-16s %s\n", name+":", green(settings.MaskKey(v)))
		} else {
			fmt.Fprintf(w, "  %-16s %s\n", name+":", red("not set"))
		}
	}
	fmt.Fprintf(w, "\n  File: %s\n\n", settings.FilePath())
}
