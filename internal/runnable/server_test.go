package runnable

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/storage"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestServer_Handler(t *testing.T) {
	s, err := storage.NewFileStorage(context.Background(), storage.FileConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	handler, err := NewServer(s, diffimage.DefaultConfig()).Handler(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"Healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"Metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"CompareRequiresPost", http.MethodGet, "/compare", http.StatusMethodNotAllowed},
		{"CompareRequiresMultipart", http.MethodPost, "/compare", http.StatusBadRequest},
		{"Unknown", http.MethodGet, "/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			response, err := http.DefaultClient.Do(request)
			if err != nil {
				t.Fatal(err)
			}
			defer response.Body.Close()

			if diff := cmp.Diff(tt.wantStatus, response.StatusCode); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
