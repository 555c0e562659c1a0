package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/viewstream/internal/metrics"
)

func scrape(t *testing.T, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	return w
}

func TestHTTPHandlerServesSessionMetrics(t *testing.T) {
	metrics.SetEncoderFPS("http-scrape", 25)
	metrics.SetSessionState("http-scrape", "running")
	defer metrics.DeleteEncoderMetrics("http-scrape")
	defer metrics.DeleteSessionState("http-scrape")

	body := scrape(t, "").Body.String()
	for _, want := range []string{
		`viewstream_encoder_fps{session="http-scrape"} 25`,
		"viewstream_session_state",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestHTTPHandlerOpenMetrics(t *testing.T) {
	w := scrape(t, "application/openmetrics-text; version=1.0.0")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasSuffix(strings.TrimSpace(w.Body.String()), "# EOF") {
		t.Error("OpenMetrics body must end with # EOF")
	}
}
