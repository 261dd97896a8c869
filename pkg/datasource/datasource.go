// Package datasource retrieves device inventories and extraction snapshots
// from vendor transports (adb for Android, libimobiledevice for iOS). It
// normalizes everything at this boundary: absent fields become zero values
// so the scoring core can assume total, well-formed input.
package datasource

import (
	"context"
	"errors"
	"fmt"

	"mobiletriage/pkg/model"
)

// ErrUnavailable marks a transport that cannot be reached at all, as
// opposed to a device that yields partial data.
var ErrUnavailable = errors.New("device data source unavailable")

// Source enumerates reachable devices and pulls snapshots from them. Every
// call is bounded by the implementation's per-command timeout; a timeout is
// reported as an ordinary error.
type Source interface {
	ListDevices(ctx context.Context) ([]model.DeviceRecord, error)
	Extract(ctx context.Context, deviceID string, platform model.Platform) (*model.Snapshot, error)
}

// MultiSource fans scans out to the per-platform sources and routes
// extraction by platform.
type MultiSource struct {
	Android Source
	IOS     Source
}

// ListDevices merges both platform families. A scan succeeds when at least
// one family is reachable; it fails only when every family fails.
func (m *MultiSource) ListDevices(ctx context.Context) ([]model.DeviceRecord, error) {
	var out []model.DeviceRecord
	var errs []error
	anyOK := false
	for _, src := range []Source{m.Android, m.IOS} {
		if src == nil {
			continue
		}
		devs, err := src.ListDevices(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// an empty scan is still a successful scan
		anyOK = true
		out = append(out, devs...)
	}
	if !anyOK && len(errs) > 0 {
		return nil, fmt.Errorf("all device scans failed: %w", errors.Join(errs...))
	}
	return out, nil
}

// Extract routes to the platform's source.
func (m *MultiSource) Extract(ctx context.Context, deviceID string, platform model.Platform) (*model.Snapshot, error) {
	var src Source
	switch platform {
	case model.PlatformAndroid:
		src = m.Android
	case model.PlatformIOS:
		src = m.IOS
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
	if src == nil {
		return nil, fmt.Errorf("%s: %w", platform, ErrUnavailable)
	}
	return src.Extract(ctx, deviceID, platform)
}

// runner executes one external command and returns its stdout. Swappable
// in tests.
type runner func(ctx context.Context, name string, args ...string) (string, error)
