package sources

import (
	"fmt"
)

// New creates a source based on kind and a generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds:
//   - "system": host CPU/memory source
//   - "http":   generic JSON HTTP source
//
// Returns an error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Source, error) {
	switch kind {
	case "system":
		return NewSystemSource(config["subsystem"]), nil
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be system or http)", kind)
	}
}

// newHTTP creates a generic HTTP source from generic config.
func newHTTP(config map[string]string) (Source, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http source requires 'url' config")
	}

	valuePath := config["valuePath"]
	timestampPath := config["timestampPath"]
	if valuePath == "" || timestampPath == "" {
		return nil, fmt.Errorf("http source requires 'valuePath' and 'timestampPath' config")
	}

	src := &HTTPSource{
		URL:             url,
		Method:          config["method"],
		ValuePath:       valuePath,
		TimestampPath:   timestampPath,
		SubsystemPath:   config["subsystemPath"],
		SubsystemID:     config["subsystem"],
		MetricPath:      config["metricPath"],
		Metric:          config["metric"],
		SeqPath:         config["seqPath"],
		TimestampFormat: config["timestampFormat"],
	}

	if src.SubsystemPath == "" && src.SubsystemID == "" {
		return nil, fmt.Errorf("http source requires 'subsystem' or 'subsystemPath' config")
	}
	if src.MetricPath == "" && src.Metric == "" {
		return nil, fmt.Errorf("http source requires 'metric' or 'metricPath' config")
	}

	return src, nil
}
