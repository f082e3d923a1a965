package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const feedBody = `{
	"samples": [
		{"subsystem": "api", "metric": "latency", "value": 120.5, "ts": "2025-06-01T12:00:00Z", "seq": 41},
		{"subsystem": "api", "metric": "latency", "value": 131.0, "ts": "2025-06-01T12:00:10Z", "seq": 42},
		{"subsystem": "db", "metric": "cpu", "value": 77.2, "ts": "2025-06-01T12:00:05Z", "seq": 43}
	]
}`

func TestHTTPSourceCollect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		ValuePath:     "samples.#.value",
		TimestampPath: "samples.#.ts",
		SubsystemPath: "samples.#.subsystem",
		MetricPath:    "samples.#.metric",
		SeqPath:       "samples.#.seq",
	}

	samples, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}

	// Sorted by timestamp ascending; the db sample lands in the middle.
	if samples[1].SubsystemID != "db" || samples[1].Metric != "cpu" {
		t.Errorf("samples[1] = %s/%s, want db/cpu", samples[1].SubsystemID, samples[1].Metric)
	}
	if samples[0].Value != 120.5 || samples[2].Value != 131.0 {
		t.Errorf("values out of order: %v, %v", samples[0].Value, samples[2].Value)
	}
	if samples[0].Seq != 41 {
		t.Errorf("Seq = %d, want 41", samples[0].Seq)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !samples[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", samples[0].Timestamp, want)
	}
}

func TestHTTPSourceFixedIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": [1.0, 2.0], "timestamps": [1748779200, 1748779210]}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:             server.URL,
		ValuePath:       "values",
		TimestampPath:   "timestamps",
		SubsystemID:     "cache",
		Metric:          "hit_rate",
		TimestampFormat: "unix",
	}

	samples, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	for _, s := range samples {
		if s.SubsystemID != "cache" || s.Metric != "hit_rate" {
			t.Errorf("sample identity = %s/%s, want cache/hit_rate", s.SubsystemID, s.Metric)
		}
	}
	// Without SeqPath the Unix timestamp doubles as the sequence number.
	if samples[0].Seq != 1748779200 {
		t.Errorf("Seq = %d, want 1748779200", samples[0].Seq)
	}
}

func TestHTTPSourceCustomHeaders(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"values": [1.0], "timestamps": ["2025-06-01T12:00:00Z"]}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		Headers:       map[string]string{"Authorization": "Bearer token123"},
		ValuePath:     "values",
		TimestampPath: "timestamps",
		SubsystemID:   "api",
		Metric:        "latency",
	}

	if _, err := src.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		ValuePath:     "values",
		TimestampPath: "timestamps",
		SubsystemID:   "api",
		Metric:        "latency",
	}

	if _, err := src.Collect(context.Background()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestHTTPSourceCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": [1.0, 2.0], "timestamps": ["2025-06-01T12:00:00Z"]}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		ValuePath:     "values",
		TimestampPath: "timestamps",
		SubsystemID:   "api",
		Metric:        "latency",
	}

	if _, err := src.Collect(context.Background()); err == nil {
		t.Fatal("expected error for value/timestamp count mismatch")
	}
}

func TestHTTPSourceMissingPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"other": []}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		ValuePath:     "values",
		TimestampPath: "timestamps",
		SubsystemID:   "api",
		Metric:        "latency",
	}

	if _, err := src.Collect(context.Background()); err == nil {
		t.Fatal("expected error for missing value path")
	}
}

func TestHTTPSourceUnixMilli(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": [5.5], "timestamps": [1748779200500]}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:             server.URL,
		ValuePath:       "values",
		TimestampPath:   "timestamps",
		SubsystemID:     "api",
		Metric:          "latency",
		TimestampFormat: "unix_milli",
	}

	samples, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	want := time.UnixMilli(1748779200500).UTC()
	if !samples[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", samples[0].Timestamp, want)
	}
}
