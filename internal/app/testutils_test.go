package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/volkanakin/storefront-checkout/internal/mailer"
	"github.com/volkanakin/storefront-checkout/internal/payment"
	appvalidator "github.com/volkanakin/storefront-checkout/internal/validator"
)

func newTestApplication(opts ...func(*Application)) *Application {
	app := &Application{
		config: Config{
			Env:     "test",
			BaseURL: "http://localhost:4000",
		},
		validator: appvalidator.NewValidator(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mailer:    &mailer.MockMailer{},
		providers: payment.NewRegistry(),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	err := json.NewDecoder(w.Body).Decode(&out)
	if err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	return out
}

func ptr[T any](v T) *T {
	return &v
}
