package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

func newTestClient(baseURL, callbackURL string) Gateway {
	return NewClient(
		&config.PredictionConfig{
			BaseURL:        baseURL,
			APIToken:       "test-token",
			RequestTimeout: 5 * time.Second,
		},
		&config.WebhookConfig{CallbackURL: callbackURL},
	)
}

func TestClientSubmit(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predictions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pred-abc","status":"starting"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "https://orchestrator.example.com/api/v1/webhooks/prediction")
	id, err := client.Submit(context.Background(), &SubmitInput{
		Model:           "video-gen-v1",
		Prompt:          "a lighthouse at dusk",
		DurationSeconds: 5,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "pred-abc" {
		t.Errorf("expected pred-abc, got %q", id)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotBody["model"] != "video-gen-v1" {
		t.Errorf("expected model in body, got %v", gotBody["model"])
	}
	if gotBody["webhook"] != "https://orchestrator.example.com/api/v1/webhooks/prediction" {
		t.Errorf("expected callback registration, got %v", gotBody["webhook"])
	}
	input, _ := gotBody["input"].(map[string]any)
	if input["prompt"] != "a lighthouse at dusk" {
		t.Errorf("expected prompt in input, got %v", input)
	}
}

func TestClientSubmitOmitsWebhookWhenUnconfigured(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":"pred-abc"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	if _, err := client.Submit(context.Background(), &SubmitInput{Model: "video-gen-v1", Prompt: "x"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := gotBody["webhook"]; ok {
		t.Errorf("webhook field must be omitted without a callback URL, got %v", gotBody["webhook"])
	}
}

func TestClientSubmitEmptyIDRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"starting"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	_, err := client.Submit(context.Background(), &SubmitInput{Model: "video-gen-v1", Prompt: "x"})
	var extErr *models.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

func TestClientPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predictions/pred-abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"pred-abc","status":"succeeded","output":["https://gen.example.com/clip.mp4"]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	result, err := client.Poll(context.Background(), "pred-abc")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if result.Status != models.PredictionSucceeded {
		t.Errorf("expected succeeded, got %s", result.Status)
	}
	if result.Output != "https://gen.example.com/clip.mp4" {
		t.Errorf("expected first output entry, got %q", result.Output)
	}
}

func TestClientPollErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"prediction not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	_, err := client.Poll(context.Background(), "pred-missing")
	var extErr *models.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want models.PredictionStatus
	}{
		{"starting", models.PredictionPending},
		{"processing", models.PredictionPending},
		{"in_queue", models.PredictionPending},
		{"succeeded", models.PredictionSucceeded},
		{"completed", models.PredictionSucceeded},
		{"canceled", models.PredictionCanceled},
		{"cancelled", models.PredictionCanceled},
		{"failed", models.PredictionFailed},
		{"exploded", models.PredictionFailed},
	}
	for _, tc := range cases {
		if got := normalizeStatus(tc.raw); got != tc.want {
			t.Errorf("normalizeStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
