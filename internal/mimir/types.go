package mimir

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Sample is one timestamped point of a series. Value keeps the store's
// string encoding; an empty Value means the point carried no value and
// is rejected downstream as a required-field violation.
type Sample struct {
	Timestamp int64
	Value     string
}

// UnmarshalJSON decodes the Prometheus wire shape [ <unix seconds>, "<value>" ].
func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding sample pair: %w", err)
	}
	if len(pair) == 0 {
		return fmt.Errorf("decoding sample pair: empty array")
	}

	var ts float64
	if err := json.Unmarshal(pair[0], &ts); err != nil {
		return fmt.Errorf("decoding sample timestamp: %w", err)
	}
	s.Timestamp = int64(ts)

	// A pair without a value is preserved as-is so the normalizer can
	// surface it as a validation error instead of dropping the point.
	if len(pair) > 1 {
		if err := json.Unmarshal(pair[1], &s.Value); err != nil {
			return fmt.Errorf("decoding sample value: %w", err)
		}
	}
	return nil
}

// TimeSeries is one matrix series: a label set plus its ordered samples.
type TimeSeries struct {
	Labels  map[string]string `json:"metric"`
	Samples []Sample          `json:"values"`
}

// ClusterInfo carries the cluster-level labels fetched once per pipeline
// run (provisioner, region and friends).
type ClusterInfo struct {
	Labels map[string]string
}

// Label returns the named cluster label. Empty values count as absent.
func (ci ClusterInfo) Label(name string) (string, bool) {
	v, ok := ci.Labels[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
