package metrics

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/mailru/easyjson/jwriter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter names shared by the store, tiers and HTTP middleware.
const (
	ImagesSaved         = "images_saved_total"
	ImageBytesStored    = "images_bytes_stored_total"
	ImageTierFallbacks  = "image_tier_fallbacks_total"
	ImageDecodeErrors   = "image_decode_errors_total"
	ImageSaveFailures   = "image_save_failures_total"
	ImageReads          = "image_reads_total"
	DataWriteFailures   = "data_write_failures_total"
	SessionsExpired     = "sessions_expired_total"
	HTTPRequests        = "http_requests_total"
	HTTPRequestsErrored = "http_requests_errors_total"
)

// Registry stores counters for exposition and mirrors them to OTel counters.
// A nil *Registry is valid and drops every increment.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64 // key = fullKey(name, labels)
	meter    metric.Meter
	otelCtrs map[string]metric.Int64Counter // base name -> instrument
}

func NewRegistry() *Registry {
	m := otel.GetMeterProvider().Meter("posemaster")
	return &Registry{
		counters: make(map[string]*atomic.Int64),
		meter:    m,
		otelCtrs: make(map[string]metric.Int64Counter),
	}
}

// fullKey renders name{k=v,...} with labels in key order, so equal label
// sets map to one counter.
func fullKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		pairs = append(pairs, k+"="+labels[k])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// Inc increases a named counter by n with labels.
// Also records the increment via OpenTelemetry counter instrument.
func (r *Registry) Inc(ctx context.Context, name string, labels map[string]string, n int64) {
	if r == nil {
		return
	}
	key := fullKey(name, labels)

	r.mu.RLock()
	c := r.counters[key]
	inst := r.otelCtrs[name]
	r.mu.RUnlock()

	if c == nil || inst == nil {
		r.mu.Lock()
		if c = r.counters[key]; c == nil {
			c = new(atomic.Int64)
			r.counters[key] = c
		}
		if inst = r.otelCtrs[name]; inst == nil {
			ctr, err := r.meter.Int64Counter(name)
			if err == nil {
				r.otelCtrs[name] = ctr
				inst = ctr
			}
		}
		r.mu.Unlock()
	}
	c.Add(n)

	if inst != nil {
		attrs := make([]attribute.KeyValue, 0, len(labels))
		for k, v := range labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		inst.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Value returns the current value of a counter, zero when it was never touched.
func (r *Registry) Value(name string, labels map[string]string) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.counters[fullKey(name, labels)]; c != nil {
		return c.Load()
	}
	return 0
}

// SnapshotLines returns sorted text lines representing current counters.
func (r *Registry) SnapshotLines() []string {
	snap := r.SnapshotJSON()
	keys := slices.Sorted(maps.Keys(snap))
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s %d", k, snap[k]))
	}
	return lines
}

// SnapshotJSON returns a map of counter->value for JSON rendering.
func (r *Registry) SnapshotJSON() map[string]int64 {
	out := make(map[string]int64)
	if r == nil {
		return out
	}
	r.mu.RLock()
	for k, v := range r.counters {
		out[k] = v.Load()
	}
	r.mu.RUnlock()
	return out
}

// EchoHandlerText serves one "name{labels} value" line per counter.
func (r *Registry) EchoHandlerText(c echo.Context) error {
	var body strings.Builder
	for _, line := range r.SnapshotLines() {
		body.WriteString(line)
		body.WriteByte('\n')
	}
	return c.String(http.StatusOK, body.String())
}

// EchoHandlerJSON writes counters as a JSON object.
func (r *Registry) EchoHandlerJSON(c echo.Context) error {
	snap := r.SnapshotJSON()
	keys := slices.Sorted(maps.Keys(snap))

	w := jwriter.Writer{}
	w.RawByte('{')
	for i, k := range keys {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.Int64(snap[k])
	}
	w.RawByte('}')

	body, err := w.BuildBytes()
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, body)
}
