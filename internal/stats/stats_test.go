package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequestIncrementsCounters(t *testing.T) {
	c := New()
	c.RecordRequest("GET", 200, 100, 500, 10*time.Millisecond)
	c.RecordRequest("GET", 404, 50, 80, 2*time.Millisecond)

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "2xx")); got != 1 {
		t.Fatalf("expected 1 2xx request, got %v", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "4xx")); got != 1 {
		t.Fatalf("expected 1 4xx request, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytesReceived); got != 150 {
		t.Fatalf("expected 150 bytes received, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytesSent); got != 580 {
		t.Fatalf("expected 580 bytes sent, got %v", got)
	}
}

func TestActiveGauges(t *testing.T) {
	c := New()
	c.SetActiveConnections(5)
	c.SetActiveCgiProcesses(2)
	if got := testutil.ToFloat64(c.activeConns); got != 5 {
		t.Fatalf("expected 5 active connections, got %v", got)
	}
	if got := testutil.ToFloat64(c.activeCgi); got != 2 {
		t.Fatalf("expected 2 active cgi, got %v", got)
	}
}

func TestTimeoutCounters(t *testing.T) {
	c := New()
	c.IncrementTimeouts()
	c.IncrementTimeouts()
	c.IncrementCgiTimeouts()
	if got := testutil.ToFloat64(c.timeoutsTotal); got != 2 {
		t.Fatalf("expected 2 timeouts, got %v", got)
	}
	if got := testutil.ToFloat64(c.cgiTimeoutsTotal); got != 1 {
		t.Fatalf("expected 1 cgi timeout, got %v", got)
	}
}

func TestUptimePositive(t *testing.T) {
	c := New()
	time.Sleep(time.Millisecond)
	if c.Uptime() <= 0 {
		t.Fatal("expected positive uptime")
	}
}

func TestExposeRendersTextFormat(t *testing.T) {
	c := New()
	c.RecordRequest("GET", 200, 10, 20, time.Millisecond)
	out, err := c.Expose()
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	body := string(out)
	if !strings.Contains(body, "webserv_requests_total") {
		t.Fatalf("expected webserv_requests_total in exposition, got %q", body)
	}
	if !strings.Contains(body, "webserv_bytes_sent_total") {
		t.Fatalf("expected webserv_bytes_sent_total in exposition, got %q", body)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{150: "1xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
