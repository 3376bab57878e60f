package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

// openaiTranslator uses the official SDK with a strict JSON schema, so the
// reply always has the nested translations shape.
type openaiTranslator struct {
	opts    Options
	locales []string
	system  string
	client  openai.Client
}

func newOpenAITranslator(opts Options) *openaiTranslator {
	locales := opts.effectiveLocales()
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.Provider.APIKey),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(opts.effectiveMaxRetries()),
		option.WithRequestTimeout(opts.effectiveTimeout()),
	}
	if opts.Provider.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.Provider.BaseURL))
	}
	return &openaiTranslator{
		opts:    opts,
		locales: locales,
		system:  SystemPrompt(locales, opts.SystemPrompt),
		client:  openai.NewClient(reqOpts...),
	}
}

func (t *openaiTranslator) params(text string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: t.opts.Provider.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(t.system),
			openai.UserMessage(text),
		},
		Temperature: param.NewOpt(0.3),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "translation_key",
					Description: openai.String("A translation key with one translation per locale"),
					Schema:      responseSchema(t.locales),
					Strict:      openai.Bool(true),
				},
			},
		},
	}
}

func (t *openaiTranslator) Translate(ctx context.Context, text string) (*Result, error) {
	t.opts.log("[DEBUG] %s: chat completion (model: %s)", t.opts.Provider.Name, t.opts.Provider.Model)

	resp, err := t.client.Chat.Completions.New(ctx, t.params(text))
	if err != nil {
		return nil, classify(t.opts.Provider.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion", ErrBadResponse)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", ErrBadResponse, msg.Refusal)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrBadResponse)
	}
	return ParseResult(msg.Content, t.locales)
}
