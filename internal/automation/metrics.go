package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for trigger firings.
type Observer interface {
	RecordFiring(event TriggerEvent, selected, attempted int)
	RecordAttempt(event TriggerEvent, actionType string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) RecordFiring(TriggerEvent, int, int)                      {}
func (nopObserver) RecordAttempt(TriggerEvent, string, time.Duration, error) {}

// PrometheusObserver exports engine metrics to Prometheus.
type PrometheusObserver struct {
	firings         *prometheus.CounterVec
	triggers        *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
}

// NewPrometheusObserver registers the engine metrics on reg. Metrics that are
// already registered are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "bomflow"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var (
		o   PrometheusObserver
		err error
	)
	o.firings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bom_trigger",
		Name:      "firings_total",
		Help:      "Events fired into the BOM trigger engine.",
	}, []string{"event"}))
	if err != nil {
		return nil, err
	}
	o.triggers, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bom_trigger",
		Name:      "triggers_total",
		Help:      "Active triggers per event, split into selected and attempted (condition matched).",
	}, []string{"event", "stage"}))
	if err != nil {
		return nil, err
	}
	o.attempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bom_trigger",
		Name:      "attempts_total",
		Help:      "Trigger executions by outcome.",
	}, []string{"event", "action_type", "outcome"}))
	if err != nil {
		return nil, err
	}
	o.attemptDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "bom_trigger",
		Name:      "attempt_duration_seconds",
		Help:      "Latency of a single trigger execution including its log write.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action_type"}))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register bom trigger metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordFiring(event TriggerEvent, selected, attempted int) {
	if o == nil {
		return
	}
	o.firings.WithLabelValues(string(event)).Inc()
	o.triggers.WithLabelValues(string(event), "selected").Add(float64(selected))
	o.triggers.WithLabelValues(string(event), "attempted").Add(float64(attempted))
}

func (o *PrometheusObserver) RecordAttempt(event TriggerEvent, actionType string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.attempts.WithLabelValues(string(event), actionType, outcome).Inc()
	o.attemptDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}
