package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := NewRegistry()
	m.Runs.Inc()
	m.RowsInvalid.Add(2)
	m.NotificationsSent.WithLabelValues("alert").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"orderrpa_runs_total 1",
		"orderrpa_rows_invalid_total 2",
		`orderrpa_notifications_sent_total{kind="alert"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
