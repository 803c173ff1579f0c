package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/contact", "POST", 200, 15*time.Millisecond)
	m.RecordError("/contact", "POST", "VALIDATION_FAILED")
	m.RecordContact("sent")
	m.RecordOverdue(3)
	m.FeedOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`portal_http_requests_total{method="POST",route="/contact",status="200"} 1`,
		`portal_http_errors_total{code="VALIDATION_FAILED",method="POST",route="/contact"} 1`,
		`portal_contact_submissions_total{outcome="sent"} 1`,
		`portal_invoices_marked_overdue_total 3`,
		`portal_feed_sessions 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.FeedOpened()
	m.FeedClosed()
	m.RecordContact("sent")
	m.RecordOverdue(1)
}
