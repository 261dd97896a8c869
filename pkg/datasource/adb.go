package datasource

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mobiletriage/pkg/model"
)

// DefaultCommandTimeout bounds every single external call.
const DefaultCommandTimeout = 15 * time.Second

// adbCandidates are probed in order when no explicit path is configured.
var adbCandidates = []string{"adb", "/usr/bin/adb", "/usr/local/bin/adb", "./platform-tools/adb"}

// ADBSource pulls Android device data over the adb debug bridge.
type ADBSource struct {
	path    string
	timeout time.Duration
	run     runner
}

// NewADBSource builds a source for the given adb binary. An empty path
// probes the usual install locations.
func NewADBSource(path string, timeout time.Duration) *ADBSource {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	s := &ADBSource{path: path, timeout: timeout, run: execCommand}
	if s.path == "" {
		s.path = findADB(s.run)
	}
	return s
}

func execCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

func findADB(run runner) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, cand := range adbCandidates {
		if _, err := run(ctx, cand, "version"); err == nil {
			return cand
		}
	}
	return ""
}

// Available reports whether an adb binary was found.
func (s *ADBSource) Available() bool { return s.path != "" }

func (s *ADBSource) adb(ctx context.Context, args ...string) (string, error) {
	if s.path == "" {
		return "", fmt.Errorf("adb: %w", ErrUnavailable)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.run(cctx, s.path, args...)
}

func (s *ADBSource) shell(ctx context.Context, deviceID string, args ...string) (string, error) {
	return s.adb(ctx, append([]string{"-s", deviceID, "shell"}, args...)...)
}

// ListDevices enumerates devices reported by `adb devices -l`.
func (s *ADBSource) ListDevices(ctx context.Context) ([]model.DeviceRecord, error) {
	out, err := s.adb(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("adb device scan: %w", err)
	}
	return parseADBDevices(out), nil
}

// parseADBDevices reads `adb devices -l` output. The first line is a
// header; only entries in state "device" are usable.
func parseADBDevices(out string) []model.DeviceRecord {
	var devs []model.DeviceRecord
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i, line := range lines {
		if i == 0 && strings.Contains(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}
		rec := model.DeviceRecord{ID: fields[0], Platform: model.PlatformAndroid}
		for _, f := range fields[2:] {
			if k, v, ok := strings.Cut(f, ":"); ok && v != "" {
				if rec.Attributes == nil {
					rec.Attributes = make(map[string]string)
				}
				rec.Attributes[k] = v
			}
		}
		devs = append(devs, rec)
	}
	return devs
}

// Extract pulls a full snapshot from one Android device. Device properties
// are mandatory; every other artifact is best-effort and defaults to
// absent when its command fails.
func (s *ADBSource) Extract(ctx context.Context, deviceID string, _ model.Platform) (*model.Snapshot, error) {
	info, err := s.deviceInfo(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", deviceID, err)
	}

	snap := &model.Snapshot{
		DeviceID:   deviceID,
		Platform:   model.PlatformAndroid,
		Device:     info,
		CapturedAt: time.Now().UTC(),
	}

	if out, err := s.shell(ctx, deviceID, "pm", "list", "packages"); err == nil {
		snap.InstalledApps = parsePackageList(out)
	}
	if out, err := s.shell(ctx, deviceID, "content", "query", "--uri", "content://sms"); err == nil {
		snap.Messages = parseSMSRows(out)
	}
	if out, err := s.shell(ctx, deviceID, "content", "query", "--uri", "content://call_log/calls"); err == nil {
		snap.CallLogs = parseCallRows(out)
	}
	if out, err := s.shell(ctx, deviceID, "find", "/sdcard/DCIM", "-type", "f"); err == nil {
		snap.MediaFiles = parseMediaPaths(out)
	}
	snap.AppData = map[string]int{}
	if out, err := s.shell(ctx, deviceID, "ls", "/sdcard/WhatsApp"); err == nil {
		snap.AppData["whatsapp"] = len(nonEmptyLines(out))
	}
	return snap, nil
}

// deviceInfo reads the base properties and the security toggles. Developer
// options and USB debugging default to false when the settings query does
// not report an explicit "1".
func (s *ADBSource) deviceInfo(ctx context.Context, deviceID string) (model.DeviceInfo, error) {
	var info model.DeviceInfo
	props := []struct {
		prop string
		dst  *string
	}{
		{"ro.product.model", &info.Model},
		{"ro.product.manufacturer", &info.Manufacturer},
		{"ro.build.version.release", &info.OSVersion},
		{"ro.serialno", &info.Serial},
	}
	for i, p := range props {
		out, err := s.shell(ctx, deviceID, "getprop", p.prop)
		if err != nil {
			if i == 0 {
				return info, fmt.Errorf("getprop %s: %w", p.prop, err)
			}
			continue
		}
		*p.dst = strings.TrimSpace(out)
	}

	if out, err := s.shell(ctx, deviceID, "which", "su"); err == nil && strings.TrimSpace(out) != "" {
		info.Rooted = true
	}
	if out, err := s.shell(ctx, deviceID, "settings", "get", "global", "development_settings_enabled"); err == nil {
		info.DeveloperOptionsEnabled = strings.TrimSpace(out) == "1"
	}
	if out, err := s.shell(ctx, deviceID, "settings", "get", "global", "adb_enabled"); err == nil {
		info.USBDebuggingEnabled = strings.TrimSpace(out) == "1"
	}
	return info, nil
}

// parsePackageList reads `pm list packages` output. The display name is
// derived from the last package path component.
func parsePackageList(out string) []model.InstalledApp {
	var apps []model.InstalledApp
	for _, line := range nonEmptyLines(out) {
		pkg, ok := strings.CutPrefix(line, "package:")
		if !ok {
			continue
		}
		pkg = strings.TrimSpace(pkg)
		name := pkg
		if i := strings.LastIndex(pkg, "."); i >= 0 && i+1 < len(pkg) {
			name = pkg[i+1:]
		}
		apps = append(apps, model.InstalledApp{Name: name, Package: pkg})
	}
	return apps
}

// parseSMSRows reads content-provider rows of the form
// "Row: 0 address=+123, body=hi, type=1". Type 1 is inbound, 2 outbound.
func parseSMSRows(out string) []model.Message {
	var msgs []model.Message
	for _, row := range contentRows(out) {
		m := model.Message{Address: row["address"], Body: row["body"]}
		switch row["type"] {
		case "1":
			m.Direction = "inbound"
		case "2":
			m.Direction = "outbound"
		default:
			m.Direction = "unknown"
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func parseCallRows(out string) []model.CallLog {
	var logs []model.CallLog
	for _, row := range contentRows(out) {
		logs = append(logs, model.CallLog{
			Number:   row["number"],
			Duration: row["duration"],
			Kind:     row["type"],
		})
	}
	return logs
}

func parseMediaPaths(out string) []model.MediaFile {
	var files []model.MediaFile
	for _, line := range nonEmptyLines(out) {
		name := line
		if i := strings.LastIndex(line, "/"); i >= 0 && i+1 < len(line) {
			name = line[i+1:]
		}
		files = append(files, model.MediaFile{Name: name, Path: line, Kind: "media"})
	}
	return files
}

// contentRows splits Android content-provider output into key/value maps,
// one per "Row:" line.
func contentRows(out string) []map[string]string {
	var rows []map[string]string
	for _, line := range nonEmptyLines(out) {
		rest, ok := strings.CutPrefix(line, "Row:")
		if !ok {
			continue
		}
		// drop the row index that follows the prefix
		rest = strings.TrimSpace(rest)
		if i := strings.Index(rest, " "); i >= 0 {
			rest = rest[i+1:]
		}
		row := make(map[string]string)
		for _, pair := range strings.Split(rest, ", ") {
			if k, v, ok := strings.Cut(pair, "="); ok {
				row[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
