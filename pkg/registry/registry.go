// Package registry tracks the set of devices currently believed connected.
// The monitoring scheduler is the single writer; everyone else sees copies.
package registry

import (
	"sort"
	"sync"
	"time"

	"mobiletriage/pkg/model"
)

// Registry holds one record per sighted device.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]model.DeviceRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[string]model.DeviceRecord)}
}

// Sync replaces the registry content with the observed set and returns the
// transitions: records present now but absent before, and records present
// before but absent now. LastSeenAt is stamped on every observed record.
func (r *Registry) Sync(observed []model.DeviceRecord, now time.Time) (connected, disconnected []model.DeviceRecord) {
	next := make(map[string]model.DeviceRecord, len(observed))
	for _, d := range observed {
		d.LastSeenAt = now
		next[d.ID] = d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range next {
		if _, ok := r.devices[id]; !ok {
			connected = append(connected, d)
		}
	}
	for id, d := range r.devices {
		if _, ok := next[id]; !ok {
			disconnected = append(disconnected, d)
		}
	}
	r.devices = next

	sortRecords(connected)
	sortRecords(disconnected)
	return connected, disconnected
}

// Snapshot returns a copy of the current device set, ordered by id.
func (r *Registry) Snapshot() []model.DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DeviceRecord, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sortRecords(out)
	return out
}

// Len reports the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func sortRecords(recs []model.DeviceRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
