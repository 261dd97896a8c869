package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobiletriage/pkg/eventbus"
	"mobiletriage/pkg/model"
	"mobiletriage/pkg/registry"
)

type fakeSource struct {
	mu      sync.Mutex
	devices []model.DeviceRecord
	err     error
	scans   int
}

func (f *fakeSource) ListDevices(context.Context) ([]model.DeviceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.DeviceRecord(nil), f.devices...), nil
}

func (f *fakeSource) Extract(context.Context, string, model.Platform) (*model.Snapshot, error) {
	return nil, errors.New("not used")
}

func (f *fakeSource) set(devices []model.DeviceRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
	f.err = err
}

// collector records every update published on the bus.
type collector struct {
	mu      sync.Mutex
	updates []model.UpdateEvent
}

func (c *collector) Handle(_ context.Context, evt eventbus.Event) {
	if u, ok := evt.Payload.(model.UpdateEvent); ok {
		c.mu.Lock()
		c.updates = append(c.updates, u)
		c.mu.Unlock()
	}
}

func (c *collector) Topics() []string { return []string{eventbus.TopicMonitorUpdate} }

func (c *collector) connectedCount(deviceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, u := range c.updates {
		for _, e := range u.Events {
			if e.Kind == model.DeviceConnected && e.Device.ID == deviceID {
				n++
			}
		}
	}
	return n
}

func fastConfig() Config {
	return Config{Interval: 20 * time.Millisecond, ErrorBackoff: 40 * time.Millisecond, AlertThreshold: 5}
}

func TestStartIsIdempotent(t *testing.T) {
	src := &fakeSource{devices: []model.DeviceRecord{{ID: "a"}}}
	bus := eventbus.NewBus(16)
	defer bus.Close()
	col := &collector{}
	bus.Register(col)

	s := New(fastConfig(), src, registry.New(), bus, nil)
	st1 := s.Start()
	st2 := s.Start()
	assert.Equal(t, model.MonitorRunning, st1.Status)
	assert.Equal(t, model.MonitorRunning, st2.Status)

	// let a few cycles pass; exactly one loop means exactly one CONNECTED
	// event for device a
	require.Eventually(t, func() bool {
		return col.connectedCount("a") >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, col.connectedCount("a"), "double start must not run a second loop")

	s.Stop()
	<-s.Done()
}

func TestStopGoesIdleWithinACycle(t *testing.T) {
	src := &fakeSource{}
	s := New(fastConfig(), src, registry.New(), nil, nil)
	s.Start()
	require.Eventually(t, func() bool { return s.State().LastTick != (time.Time{}) }, time.Second, time.Millisecond)

	st := s.Stop()
	assert.Contains(t, []model.MonitorStatus{model.MonitorStopping, model.MonitorIdle}, st.Status)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop within a cycle bound")
	}
	assert.Equal(t, model.MonitorIdle, s.State().Status)
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	s := New(fastConfig(), &fakeSource{}, registry.New(), nil, nil)
	assert.Equal(t, model.MonitorIdle, s.Stop().Status)
}

func TestScanFailureBacksOffAndKeepsRunning(t *testing.T) {
	src := &fakeSource{err: errors.New("transport down")}
	s := New(fastConfig(), src, registry.New(), nil, nil)

	interval := s.runCycle(context.Background())
	assert.Equal(t, s.cfg.ErrorBackoff, interval, "failed cycle must use the backoff interval")
	assert.Equal(t, 1, s.State().ConsecutiveErrors)

	interval = s.runCycle(context.Background())
	assert.Equal(t, s.cfg.ErrorBackoff, interval)
	assert.Equal(t, 2, s.State().ConsecutiveErrors)

	// recovery resets the streak and the cadence
	src.set([]model.DeviceRecord{{ID: "a"}}, nil)
	interval = s.runCycle(context.Background())
	assert.Equal(t, s.cfg.Interval, interval)
	assert.Equal(t, 0, s.State().ConsecutiveErrors)
}

func TestLoopSurvivesScanErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("transport down")}
	cfg := fastConfig()
	cfg.ErrorBackoff = 20 * time.Millisecond
	s := New(cfg, src, registry.New(), nil, nil)
	s.Start()

	require.Eventually(t, func() bool { return s.State().ConsecutiveErrors >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, model.MonitorRunning, s.State().Status, "errors must not stop the loop")

	s.Stop()
	<-s.Done()
}

func TestDeviceCountAlert(t *testing.T) {
	devices := make([]model.DeviceRecord, 6)
	for i := range devices {
		devices[i] = model.DeviceRecord{ID: string(rune('a' + i))}
	}
	s := New(fastConfig(), &fakeSource{devices: devices}, registry.New(), nil, nil)

	alerts := s.evaluateAlerts(devices)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertHighDeviceCount, alerts[0].Kind)

	assert.Empty(t, s.evaluateAlerts(devices[:5]), "threshold is exclusive")
}

func TestCycleDiffsAndPublishes(t *testing.T) {
	src := &fakeSource{devices: []model.DeviceRecord{{ID: "a"}, {ID: "b"}}}
	bus := eventbus.NewBus(16)
	defer bus.Close()
	col := &collector{}
	bus.Register(col)

	s := New(fastConfig(), src, registry.New(), bus, nil)
	s.runCycle(context.Background())
	src.set([]model.DeviceRecord{{ID: "b"}, {ID: "c"}}, nil)
	s.runCycle(context.Background())

	require.Eventually(t, func() bool {
		col.mu.Lock()
		defer col.mu.Unlock()
		return len(col.updates) == 2
	}, time.Second, time.Millisecond)

	col.mu.Lock()
	defer col.mu.Unlock()
	first, second := col.updates[0], col.updates[1]
	assert.Len(t, first.Events, 2, "initial scan connects both devices")
	require.Len(t, second.Events, 2)
	assert.Equal(t, model.DeviceConnected, second.Events[0].Kind)
	assert.Equal(t, "c", second.Events[0].Device.ID)
	assert.Equal(t, model.DeviceDisconnected, second.Events[1].Kind)
	assert.Equal(t, "a", second.Events[1].Device.ID)
	assert.Len(t, second.Devices, 2)
}

type failingRecorder struct{}

func (failingRecorder) RecordUpdate(model.UpdateEvent) error { return errors.New("disk full") }

func TestRecorderFailureCountsAsCycleError(t *testing.T) {
	src := &fakeSource{devices: []model.DeviceRecord{{ID: "a"}}}
	s := New(fastConfig(), src, registry.New(), nil, failingRecorder{})
	interval := s.runCycle(context.Background())
	assert.Equal(t, s.cfg.ErrorBackoff, interval)
	assert.Equal(t, 1, s.State().ConsecutiveErrors)
}
