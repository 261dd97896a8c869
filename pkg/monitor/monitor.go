// Package monitor runs the continuous device-watch loop: scan, diff,
// alert, publish, sleep. One scheduler instance owns the device registry;
// stopping is cooperative and observed at cycle boundaries.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mobiletriage/pkg/datasource"
	"mobiletriage/pkg/eventbus"
	"mobiletriage/pkg/model"
	"mobiletriage/pkg/registry"
)

var (
	mCycles = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "monitor", Name: "cycles_total", Help: "Completed monitoring cycles."},
	)
	mCycleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "monitor", Name: "cycle_errors_total", Help: "Monitoring cycles that failed and backed off."},
	)
	gDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "triage", Subsystem: "monitor", Name: "connected_devices", Help: "Devices observed in the last completed scan."},
	)
)

func init() {
	_ = prometheus.Register(mCycles)
	_ = prometheus.Register(mCycleErrors)
	_ = prometheus.Register(gDevices)
}

// Defaults for the loop cadence and alerting.
const (
	DefaultInterval       = 10 * time.Second
	DefaultErrorBackoff   = 30 * time.Second
	DefaultAlertThreshold = 5
)

// Config holds the scheduler knobs. Zero values fall back to defaults;
// out-of-range values are rejected upstream by the config layer.
type Config struct {
	Interval       time.Duration
	ErrorBackoff   time.Duration
	AlertThreshold int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.AlertThreshold <= 0 {
		c.AlertThreshold = DefaultAlertThreshold
	}
	return c
}

// Recorder persists per-cycle updates to an append-only sink.
type Recorder interface {
	RecordUpdate(evt model.UpdateEvent) error
}

// Scheduler is the single-instance monitoring loop. Start is idempotent
// and Stop is cooperative; the loop never terminates on a cycle error.
type Scheduler struct {
	cfg      Config
	source   datasource.Source
	registry *registry.Registry
	bus      eventbus.Publisher
	recorder Recorder

	mu        sync.Mutex
	status    model.MonitorStatus
	cancel    context.CancelFunc
	done      chan struct{}
	lastTick  time.Time
	errStreak int
}

// New wires a scheduler. bus and recorder may be nil.
func New(cfg Config, src datasource.Source, reg *registry.Registry, bus eventbus.Publisher, rec Recorder) *Scheduler {
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		source:   src,
		registry: reg,
		bus:      bus,
		recorder: rec,
		status:   model.MonitorIdle,
	}
}

// Start launches the loop. Calling it while already running is a no-op
// that returns the existing state; a second concurrent loop is never
// started.
func (s *Scheduler) Start() model.MonitoringState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.MonitorIdle {
		return s.stateLocked()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status = model.MonitorRunning
	s.errStreak = 0
	go s.loop(ctx, s.done)
	log.Printf("[monitor] started interval=%s", s.cfg.Interval)
	return s.stateLocked()
}

// Stop requests a cooperative shutdown. The loop observes the request at
// its next check point, performs no further scan, and goes idle.
func (s *Scheduler) Stop() model.MonitoringState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.MonitorRunning {
		return s.stateLocked()
	}
	s.status = model.MonitorStopping
	s.cancel()
	log.Printf("[monitor] stop requested")
	return s.stateLocked()
}

// State returns a point-in-time copy of the scheduler state.
func (s *Scheduler) State() model.MonitoringState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) stateLocked() model.MonitoringState {
	return model.MonitoringState{
		Status:            s.status,
		IntervalSeconds:   int(s.cfg.Interval / time.Second),
		LastTick:          s.lastTick,
		ConsecutiveErrors: s.errStreak,
	}
}

// Done exposes the current run's completion channel for callers that need
// to wait out the transition to idle. Nil before the first Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.status = model.MonitorIdle
		s.mu.Unlock()
		close(done)
		log.Printf("[monitor] stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		interval := s.runCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// runCycle performs one scan/diff/alert/publish pass and returns the sleep
// before the next cycle: the normal interval, or the backoff interval when
// anything in the cycle failed. Errors never escape the loop.
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	now := time.Now().UTC()
	s.mu.Lock()
	s.lastTick = now
	s.mu.Unlock()

	devices, err := s.source.ListDevices(ctx)
	if err != nil {
		return s.cycleFailed(fmt.Errorf("scan: %w", err))
	}

	connected, disconnected := s.registry.Sync(devices, now)
	current := s.registry.Snapshot()

	var events []model.DeviceEvent
	for _, d := range connected {
		events = append(events, model.DeviceEvent{Kind: model.DeviceConnected, Device: d})
	}
	for _, d := range disconnected {
		events = append(events, model.DeviceEvent{Kind: model.DeviceDisconnected, Device: d})
	}

	update := model.UpdateEvent{
		Timestamp: now,
		Devices:   current,
		Events:    events,
		Alerts:    s.evaluateAlerts(current),
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, eventbus.Event{Type: eventbus.TopicMonitorUpdate, Source: "monitor", Payload: update}); err != nil {
			return s.cycleFailed(fmt.Errorf("publish: %w", err))
		}
	}
	if s.recorder != nil {
		if err := s.recorder.RecordUpdate(update); err != nil {
			return s.cycleFailed(fmt.Errorf("record: %w", err))
		}
	}

	s.mu.Lock()
	s.errStreak = 0
	s.mu.Unlock()
	mCycles.Inc()
	gDevices.Set(float64(len(current)))
	return s.cfg.Interval
}

func (s *Scheduler) cycleFailed(err error) time.Duration {
	s.mu.Lock()
	s.errStreak++
	streak := s.errStreak
	s.mu.Unlock()
	mCycleErrors.Inc()
	log.Printf("[monitor] cycle error (streak=%d): %v", streak, err)
	return s.cfg.ErrorBackoff
}

// evaluateAlerts runs the advisory alert rules over the current device
// set. Alerts never mutate state.
func (s *Scheduler) evaluateAlerts(devices []model.DeviceRecord) []model.Alert {
	var alerts []model.Alert
	if len(devices) > s.cfg.AlertThreshold {
		alerts = append(alerts, model.Alert{
			Kind:     model.AlertHighDeviceCount,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("High number of connected devices detected: %d", len(devices)),
		})
	}
	return alerts
}
