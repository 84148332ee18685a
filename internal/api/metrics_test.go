package api

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func render(m *MetricsCollector) string {
	var sb strings.Builder
	m.WritePrometheus(&sb)
	return sb.String()
}

func TestMetricsCollector_Counter(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordRequest("POST", "200")
	m.RecordRequest("POST", "200")
	m.RecordRequest("GET", "404")
	m.RecordError("SESSION_NOT_FOUND")

	output := render(m)

	for _, want := range []string{
		`repochat_http_requests_total{method="POST",status="200"} 2`,
		`repochat_http_requests_total{method="GET",status="404"} 1`,
		`repochat_errors_total{code="SESSION_NOT_FOUND"} 1`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestMetricsCollector_Histogram(t *testing.T) {
	m := NewMetricsCollector()

	for _, d := range []time.Duration{
		10 * time.Millisecond,
		200 * time.Millisecond,
		3 * time.Second,
		time.Minute,
	} {
		m.RecordQuery("ok", d)
	}

	output := render(m)

	for _, want := range []string{
		`repochat_query_duration_seconds_bucket{outcome="ok",le="0.05"} 1`,
		`repochat_query_duration_seconds_bucket{outcome="ok",le="0.25"} 2`,
		`repochat_query_duration_seconds_bucket{outcome="ok",le="5"} 3`,
		`repochat_query_duration_seconds_bucket{outcome="ok",le="+Inf"} 4`,
		`repochat_query_duration_seconds_count{outcome="ok"} 4`,
		`repochat_queries_total{outcome="ok"} 4`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestMetricsCollector_Gauges(t *testing.T) {
	m := NewMetricsCollector()
	m.SetSessions(3)

	output := render(m)

	for _, want := range []string{
		"repochat_sessions 3",
		"repochat_goroutines",
		"repochat_memory_alloc_bytes",
		"repochat_uptime_seconds",
		"repochat_info{version=",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output", want)
		}
	}
}

func TestMetricsCollector_Concurrency(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordClone("ok", time.Duration(j)*time.Millisecond)
				m.RecordQuery("error", time.Duration(j)*time.Millisecond)
				m.SetSessions(j)
			}
		}()
	}
	wg.Wait()

	output := render(m)
	if !strings.Contains(output, `repochat_clones_total{outcome="ok"} 1000`) {
		t.Errorf("expected 1000 clones, got:\n%s", output)
	}
	if !strings.Contains(output, `repochat_clone_duration_seconds_count{outcome="ok"} 1000`) {
		t.Error("expected 1000 clone observations")
	}
}
