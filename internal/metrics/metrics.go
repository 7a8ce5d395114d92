// Package metrics records per-operation client metrics (request latency,
// outcome counts) as single-line JSON documents. Lines go to a process-wide
// sink that defaults to io.Discard; the CLI points it at a file or stderr
// when metrics are enabled.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Units attached to metric values.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
)

// Namespace is the namespace used by the client for all of its records.
const Namespace = "MissingPersonClient"

type value struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type document struct {
	Namespace  string                 `json:"namespace"`
	Timestamp  int64                  `json:"timestamp"`
	Dimensions map[string]string      `json:"dimensions,omitempty"`
	Metrics    map[string]value       `json:"metrics"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

var (
	sinkMu sync.Mutex
	sink   io.Writer = io.Discard
)

// SetOutput redirects flushed records to w. A nil w disables output.
func SetOutput(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	sink = w
}

// Recorder accumulates dimensions, metrics, and properties for a single flush.
// It is NOT safe for concurrent use; create one per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    map[string]value
	properties map[string]interface{}
}

// New creates a Recorder for the given namespace.
func New(namespace string) *Recorder {
	return &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]value),
		properties: make(map[string]interface{}),
	}
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, val string) *Recorder {
	r.dimensions[key] = val
	return r
}

// Metric records a named metric value. Use the Unit* constants.
func (r *Recorder) Metric(name string, v float64, unit string) *Recorder {
	r.metrics[name] = value{Value: v, Unit: unit}
	return r
}

// Count is a convenience for recording a count metric (value = 1).
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Duration records d in milliseconds.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Property adds a non-metric field to the record.
func (r *Recorder) Property(key string, v interface{}) *Recorder {
	r.properties[key] = v
	return r
}

// Flush writes the record as a single JSON line. Records without metrics are
// dropped. The Recorder should not be reused after flushing.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	doc := document{
		Namespace:  r.namespace,
		Timestamp:  time.Now().UnixMilli(),
		Dimensions: r.dimensions,
		Metrics:    r.metrics,
		Properties: r.properties,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics: failed to marshal record: %v\n", err)
		return
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	fmt.Fprintln(sink, string(data))
}
