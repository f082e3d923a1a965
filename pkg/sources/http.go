package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPSource is a generic connector that polls a REST endpoint and extracts
// samples using JSON path expressions (gjson syntax).
//
// The endpoint is expected to return a JSON document containing parallel
// arrays of values and timestamps, for example:
//
//	{"samples":[
//	  {"subsystem":"api","metric":"latency","value":120.5,"ts":"2026-08-30T10:00:00Z","seq":41},
//	  {"subsystem":"api","metric":"latency","value":131.0,"ts":"2026-08-30T10:00:10Z","seq":42}
//	]}
//
// with paths "samples.#.value", "samples.#.ts" and so on. SubsystemPath,
// MetricPath and SeqPath are optional: fixed SubsystemID/Metric values can be
// used for feeds that serve a single series, and when SeqPath is empty the
// Unix timestamp doubles as the sequence number.
type HTTPSource struct {
	// URL is the endpoint to poll (required).
	URL string

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers, e.g. for bearer tokens.
	Headers map[string]string

	// ValuePath is the gjson path to the metric values (required).
	ValuePath string

	// TimestampPath is the gjson path to the timestamps (required).
	// Must yield the same number of elements as ValuePath.
	TimestampPath string

	// SubsystemPath extracts per-sample subsystem ids. When empty,
	// SubsystemID is used for every sample.
	SubsystemPath string

	// SubsystemID is the fixed subsystem id used when SubsystemPath is empty.
	SubsystemID string

	// MetricPath extracts per-sample metric names. When empty, Metric is
	// used for every sample.
	MetricPath string

	// Metric is the fixed metric name used when MetricPath is empty.
	Metric string

	// SeqPath extracts per-sample sequence numbers. When empty, the sample's
	// Unix timestamp in seconds is used instead.
	SeqPath string

	// TimestampFormat selects timestamp parsing:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	TimestampFormat string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (h *HTTPSource) Name() string { return "http" }

// Collect polls the endpoint once and returns the extracted samples sorted
// by timestamp ascending.
func (h *HTTPSource) Collect(ctx context.Context) ([]Sample, error) {
	if h.URL == "" {
		return nil, errors.New("http source: URL is required")
	}
	if h.ValuePath == "" || h.TimestampPath == "" {
		return nil, errors.New("http source: ValuePath and TimestampPath are required")
	}
	if h.SubsystemPath == "" && h.SubsystemID == "" {
		return nil, errors.New("http source: SubsystemPath or SubsystemID is required")
	}
	if h.MetricPath == "" && h.Metric == "" {
		return nil, errors.New("http source: MetricPath or Metric is required")
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	values := gjson.GetBytes(respBody, h.ValuePath)
	timestamps := gjson.GetBytes(respBody, h.TimestampPath)
	if !values.Exists() {
		return nil, fmt.Errorf("value path %q not found in response", h.ValuePath)
	}
	if !timestamps.Exists() {
		return nil, fmt.Errorf("timestamp path %q not found in response", h.TimestampPath)
	}

	valArray := values.Array()
	tsArray := timestamps.Array()
	if len(valArray) != len(tsArray) {
		return nil, fmt.Errorf("value count (%d) != timestamp count (%d)", len(valArray), len(tsArray))
	}

	var subsystems, metrics, seqs []gjson.Result
	if h.SubsystemPath != "" {
		subsystems = gjson.GetBytes(respBody, h.SubsystemPath).Array()
		if len(subsystems) != len(valArray) {
			return nil, fmt.Errorf("subsystem count (%d) != value count (%d)", len(subsystems), len(valArray))
		}
	}
	if h.MetricPath != "" {
		metrics = gjson.GetBytes(respBody, h.MetricPath).Array()
		if len(metrics) != len(valArray) {
			return nil, fmt.Errorf("metric count (%d) != value count (%d)", len(metrics), len(valArray))
		}
	}
	if h.SeqPath != "" {
		seqs = gjson.GetBytes(respBody, h.SeqPath).Array()
		if len(seqs) != len(valArray) {
			return nil, fmt.Errorf("seq count (%d) != value count (%d)", len(seqs), len(valArray))
		}
	}

	samples := make([]Sample, 0, len(valArray))
	for i := range valArray {
		ts, err := h.parseTimestamp(tsArray[i])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}

		sample := Sample{
			SubsystemID: h.SubsystemID,
			Metric:      h.Metric,
			Value:       valArray[i].Float(),
			Timestamp:   ts,
			Seq:         uint64(ts.Unix()),
		}
		if subsystems != nil {
			sample.SubsystemID = subsystems[i].String()
		}
		if metrics != nil {
			sample.Metric = metrics[i].String()
		}
		if seqs != nil {
			sample.Seq = seqs[i].Uint()
		}
		samples = append(samples, sample)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	return samples, nil
}

// parseTimestamp parses a timestamp according to the configured format.
func (h *HTTPSource) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := h.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		return time.Parse(time.RFC3339, value.String())
	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}
