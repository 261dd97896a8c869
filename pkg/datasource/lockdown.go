package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mobiletriage/pkg/model"
)

// LockdownSource pulls iOS device data via the libimobiledevice tools.
// Extraction is shallower than Android: the lockdown protocol exposes
// device properties without a paired backup, so snapshots are info-only.
type LockdownSource struct {
	timeout time.Duration
	run     runner
}

// NewLockdownSource builds the iOS source.
func NewLockdownSource(timeout time.Duration) *LockdownSource {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &LockdownSource{timeout: timeout, run: execCommand}
}

func (s *LockdownSource) exec(ctx context.Context, name string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.run(cctx, name, args...)
}

// ListDevices enumerates paired devices via `idevice_id -l`.
func (s *LockdownSource) ListDevices(ctx context.Context) ([]model.DeviceRecord, error) {
	out, err := s.exec(ctx, "idevice_id", "-l")
	if err != nil {
		return nil, fmt.Errorf("ios device scan: %w", err)
	}
	var devs []model.DeviceRecord
	for _, id := range nonEmptyLines(out) {
		devs = append(devs, model.DeviceRecord{ID: id, Platform: model.PlatformIOS})
	}
	return devs, nil
}

// Extract reads lockdown properties for one device.
func (s *LockdownSource) Extract(ctx context.Context, deviceID string, _ model.Platform) (*model.Snapshot, error) {
	out, err := s.exec(ctx, "ideviceinfo", "-u", deviceID)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", deviceID, err)
	}
	return &model.Snapshot{
		DeviceID:   deviceID,
		Platform:   model.PlatformIOS,
		Device:     parseLockdownInfo(out),
		AppData:    map[string]int{},
		CapturedAt: time.Now().UTC(),
	}, nil
}

// parseLockdownInfo reads "Key: Value" lines from ideviceinfo output.
func parseLockdownInfo(out string) model.DeviceInfo {
	var info model.DeviceInfo
	for _, line := range nonEmptyLines(out) {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch strings.TrimSpace(k) {
		case "ProductType":
			info.Model = v
		case "ProductVersion":
			info.OSVersion = v
		case "SerialNumber":
			info.Serial = v
		}
	}
	if info.Model != "" {
		info.Manufacturer = "Apple"
	}
	return info
}
