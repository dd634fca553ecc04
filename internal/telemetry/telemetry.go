package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
)

// Metric represents a telemetry metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector accumulates metrics for one janitor run. Safe for concurrent use.
type Collector struct {
	mu      sync.RWMutex
	metrics []Metric
	enabled bool
}

// NewCollector creates a new telemetry collector
func NewCollector(enabled bool) *Collector {
	return &Collector{
		metrics: make([]Metric, 0),
		enabled: enabled,
	}
}

// Counter increments a counter metric
func (c *Collector) Counter(name string, value float64, labels map[string]string) {
	if !c.enabled {
		return
	}

	c.addMetric(Metric{
		Name:      name,
		Type:      Counter,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// Timer records a duration measurement
func (c *Collector) Timer(name string, duration time.Duration, labels map[string]string) {
	if !c.enabled {
		return
	}

	c.addMetric(Metric{
		Name:      name,
		Type:      Timer,
		Value:     float64(duration.Milliseconds()),
		Labels:    labels,
		Timestamp: time.Now(),
		Unit:      "ms",
	})
}

func (c *Collector) addMetric(metric Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, metric)
}

// GetMetrics returns a copy of current metrics
func (c *Collector) GetMetrics() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Metric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Sum adds up the values of every metric with the given name.
func (c *Collector) Sum(name string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	for _, m := range c.metrics {
		if m.Name == name {
			total += m.Value
		}
	}
	return total
}

// FlushMetrics logs a per-name summary of the collected metrics and clears them.
func (c *Collector) FlushMetrics() error {
	c.mu.Lock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.metrics = c.metrics[:0]
	c.mu.Unlock()

	if len(metrics) == 0 {
		return nil
	}

	log.Debug().Int("count", len(metrics)).Msg("Flushing telemetry metrics")

	type agg struct {
		typ   MetricType
		count int
		total float64
		unit  string
	}
	byName := map[string]*agg{}
	for _, m := range metrics {
		a, ok := byName[m.Name]
		if !ok {
			a = &agg{typ: m.Type, unit: m.Unit}
			byName[m.Name] = a
		}
		a.count++
		a.total += m.Value
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := byName[name]
		log.Info().
			Str("name", name).
			Str("type", string(a.typ)).
			Int("samples", a.count).
			Float64("total", a.total).
			Str("unit", a.unit).
			Msg("telemetry_metric")
	}
	return nil
}

// Shutdown flushes whatever is left.
func (c *Collector) Shutdown() error {
	return c.FlushMetrics()
}

var globalCollector atomic.Pointer[Collector]

// InitGlobal initializes the global telemetry collector
func InitGlobal(enabled bool) {
	globalCollector.Store(NewCollector(enabled))
}

// GetGlobal returns the global collector, a disabled one if InitGlobal was never called.
func GetGlobal() *Collector {
	if c := globalCollector.Load(); c != nil {
		return c
	}
	globalCollector.CompareAndSwap(nil, NewCollector(false))
	return globalCollector.Load()
}

// CounterGlobal increments a counter using the global collector
func CounterGlobal(name string, value float64, labels map[string]string) {
	GetGlobal().Counter(name, value, labels)
}

// TimerGlobal records a timer using the global collector
func TimerGlobal(name string, duration time.Duration, labels map[string]string) {
	GetGlobal().Timer(name, duration, labels)
}

// Shutdown shuts down the global collector
func Shutdown() error {
	if c := globalCollector.Load(); c != nil {
		return c.Shutdown()
	}
	return nil
}
