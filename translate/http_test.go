package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minios-linux/textkey/copilot"
)

const okContent = `{"camelizedKey": "saveChanges", "translations": {"en": "Save changes", "fr": "Enregistrer"}}`

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

// fakeChat answers with the given status codes in order, then 200.
func fakeChat(t *testing.T, statuses ...int) (*httptest.Server, *int32, *chatRequest) {
	t.Helper()
	var calls int32
	var last chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &last)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			switch statuses[n-1] {
			case http.StatusTooManyRequests:
				fmt.Fprint(w, `{"error":{"message":"quota","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"0s"}]}}`)
			default:
				fmt.Fprintf(w, `{"error":{"message":"status %d"}}`, statuses[n-1])
			}
			return
		}
		fmt.Fprint(w, chatReply(okContent))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &last
}

func fastRetries(t *testing.T) {
	t.Helper()
	oldBuf, oldDelay := retryBuffer, defaultRetryDelay
	retryBuffer, defaultRetryDelay = 0, time.Millisecond
	t.Cleanup(func() { retryBuffer, defaultRetryDelay = oldBuf, oldDelay })
}

func chatOpts(srv *httptest.Server, id string) Options {
	return Options{
		Provider: Provider{
			ID:      id,
			Name:    "Test",
			BaseURL: srv.URL + "/v1",
			APIKey:  "k-123",
			Model:   "test-model",
		},
		Locales:      enFr,
		RetryBackoff: time.Millisecond,
	}
}

func TestChatTranslatorSuccess(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat["type"] != "json_object" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		if !strings.Contains(req.Messages[0].Content, "English and French") || req.Messages[1].Content != "Save changes" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		fmt.Fprint(w, chatReply("```json\n"+okContent+"\n```"))
	}))
	defer srv.Close()

	tr := newChatTranslator(chatOpts(srv, ProviderCustomOpenAI))
	got, err := tr.Translate(context.Background(), "Save changes")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if got.Key != "saveChanges" || got.Translations["fr"] != "Enregistrer" {
		t.Fatalf("Translate() = %+v", got)
	}
	if auth != "Bearer k-123" {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestChatTranslatorRetriesServerErrors(t *testing.T) {
	srv, calls, _ := fakeChat(t, http.StatusBadGateway, http.StatusServiceUnavailable)

	if _, err := newChatTranslator(chatOpts(srv, ProviderGroq)).Translate(context.Background(), "x"); err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestChatTranslatorRateLimit(t *testing.T) {
	fastRetries(t)

	t.Run("retried", func(t *testing.T) {
		srv, calls, _ := fakeChat(t, http.StatusTooManyRequests)
		if _, err := newChatTranslator(chatOpts(srv, ProviderGroq)).Translate(context.Background(), "x"); err != nil {
			t.Fatalf("Translate() error: %v", err)
		}
		if got := atomic.LoadInt32(calls); got != 2 {
			t.Fatalf("calls = %d, want 2", got)
		}
	})

	t.Run("no retries left", func(t *testing.T) {
		srv, _, _ := fakeChat(t, http.StatusTooManyRequests)
		opts := chatOpts(srv, ProviderGroq)
		opts.MaxRetries = -1
		_, err := newChatTranslator(opts).Translate(context.Background(), "x")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("Translate() error = %v, want ErrRateLimited", err)
		}
	})
}

func TestChatTranslatorClientError(t *testing.T) {
	srv, calls, _ := fakeChat(t, http.StatusBadRequest)
	_, err := newChatTranslator(chatOpts(srv, ProviderGroq)).Translate(context.Background(), "x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Fatalf("Translate() error = %v, want *APIError 400", err)
	}
	if got := Describe(err); got != "An API error occurred: status 400" {
		t.Fatalf("Describe() = %q", got)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("4xx must not be retried, calls = %d", got)
	}
}

func TestChatTranslatorConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	opts := chatOpts(srv, ProviderOllama)
	srv.Close()

	_, err := newChatTranslator(opts).Translate(context.Background(), "x")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Translate() error = %v, want ErrConnection", err)
	}
}

func TestParseRetryDelay(t *testing.T) {
	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12.5s"}]}}`)
	if got := parseRetryDelay(body, nil); got != 12500*time.Millisecond+retryBuffer {
		t.Errorf("RetryInfo delay = %v", got)
	}

	h := http.Header{}
	h.Set("Retry-After", "7")
	if got := parseRetryDelay([]byte("busy"), h); got != 7*time.Second+retryBuffer {
		t.Errorf("Retry-After delay = %v", got)
	}

	if got := parseRetryDelay([]byte("busy"), nil); got != defaultRetryDelay+retryBuffer {
		t.Errorf("default delay = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Copilot
// ---------------------------------------------------------------------------

func TestCopilotReauthenticatesOn401(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if err := copilot.SaveToken("stale"); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"device_code":"d","user_code":"U-1","verification_uri":"https://example.com","expires_in":60}`)
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"bearer"}`)
	})
	var seen []string
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		seen = append(seen, auth)
		if auth != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, chatReply(okContent))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := Options{
		Provider: Provider{ID: ProviderCopilot, Name: "GitHub Copilot", BaseURL: srv.URL, Model: "gpt-4o"},
		Locales:  enFr,
		Copilot: &copilot.Client{
			HTTPClient:     srv.Client(),
			DeviceCodeURL:  srv.URL + "/device/code",
			AccessTokenURL: srv.URL + "/access_token",
			MinInterval:    time.Millisecond,
			Out:            io.Discard,
		},
	}
	got, err := newCopilotTranslator(opts).Translate(context.Background(), "Save changes")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if got.Key != "saveChanges" {
		t.Fatalf("Key = %q", got.Key)
	}
	if len(seen) != 2 || seen[0] != "Bearer stale" {
		t.Fatalf("Authorization headers = %q", seen)
	}
	if info := copilot.LoadToken(); info == nil || info.Access != "fresh" {
		t.Fatalf("stored token = %#v", info)
	}
}

// ---------------------------------------------------------------------------
// SDK-backed providers
// ---------------------------------------------------------------------------

func TestOpenAITranslator(t *testing.T) {
	var format map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		format, _ = body["response_format"].(map[string]any)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatReply(okContent))
	}))
	defer srv.Close()

	opts := Options{
		Provider:   Provider{ID: ProviderOpenAI, Name: "OpenAI", BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-4o"},
		Locales:    enFr,
		MaxRetries: -1,
	}
	got, err := newOpenAITranslator(opts).Translate(context.Background(), "Save changes")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if got.Translations["en"] != "Save changes" {
		t.Fatalf("Translate() = %+v", got)
	}
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v, want json_schema", format)
	}

	opts.Provider.APIKey = "sk-wrong"
	_, err = newOpenAITranslator(opts).Translate(context.Background(), "Save changes")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Translate(wrong key) error = %v, want ErrAuthentication", err)
	}
}

func TestGeminiTranslator(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		reply, _ := json.Marshal(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": okContent}},
				},
			}},
		})
		w.Write(reply)
	}))
	defer srv.Close()

	opts := Options{
		Provider:     Provider{ID: ProviderGoogle, Name: "Gemini", BaseURL: srv.URL + "/", APIKey: "g-key", Model: "gemini-test"},
		Locales:      enFr,
		RetryBackoff: time.Millisecond,
	}
	tr, err := newGeminiTranslator(context.Background(), opts)
	if err != nil {
		t.Fatalf("newGeminiTranslator() error: %v", err)
	}
	got, err := tr.Translate(context.Background(), "Save changes")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if got.Key != "saveChanges" {
		t.Fatalf("Key = %q", got.Key)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2 (one retry after 503)", calls)
	}
}
