package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"mobiletriage/pkg/model"
)

func TestParseADBDevices(t *testing.T) {
	out := "List of devices attached\n" +
		"emulator-5554\tdevice product:sdk_gphone64 model:Pixel_7 device:emu64\n" +
		"0a1b2c3d\tunauthorized\n" +
		"ZY22ABCDEF\tdevice\n\n"
	devs := parseADBDevices(out)
	if len(devs) != 2 {
		t.Fatalf("expected 2 usable devices, got %d: %v", len(devs), devs)
	}
	if devs[0].ID != "emulator-5554" || devs[0].Platform != model.PlatformAndroid {
		t.Fatalf("unexpected first device: %+v", devs[0])
	}
	if devs[0].Attributes["model"] != "Pixel_7" {
		t.Fatalf("expected model attribute, got %v", devs[0].Attributes)
	}
	if devs[1].ID != "ZY22ABCDEF" {
		t.Fatalf("unexpected second device: %+v", devs[1])
	}
}

func TestParsePackageList(t *testing.T) {
	out := "package:com.android.chrome\npackage:com.example.spytool\n\njunk line\n"
	apps := parsePackageList(out)
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(apps))
	}
	if apps[0].Package != "com.android.chrome" || apps[0].Name != "chrome" {
		t.Fatalf("unexpected app: %+v", apps[0])
	}
}

func TestParseSMSRows(t *testing.T) {
	out := "Row: 0 address=+15551234, body=hello there, type=1\n" +
		"Row: 1 address=+15559999, body=on my way, type=2\n"
	msgs := parseSMSRows(out)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Address != "+15551234" || msgs[0].Direction != "inbound" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
	if msgs[1].Direction != "outbound" {
		t.Fatalf("expected outbound, got %s", msgs[1].Direction)
	}
}

func TestParseLockdownInfo(t *testing.T) {
	out := "DeviceName: Test iPhone\nProductType: iPhone14,2\nProductVersion: 17.4\nSerialNumber: F2LXYZ\n"
	info := parseLockdownInfo(out)
	if info.Model != "iPhone14,2" || info.OSVersion != "17.4" || info.Serial != "F2LXYZ" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Manufacturer != "Apple" {
		t.Fatalf("expected Apple manufacturer, got %q", info.Manufacturer)
	}
}

func TestADBExtractDefaultsMissingFields(t *testing.T) {
	// only getprop succeeds; everything else fails and must default
	src := &ADBSource{path: "adb", timeout: time.Second, run: func(_ context.Context, _ string, args ...string) (string, error) {
		if len(args) >= 4 && args[2] == "shell" && args[3] == "getprop" {
			return "stub\n", nil
		}
		return "", errors.New("command failed")
	}}
	snap, err := src.Extract(context.Background(), "dev1", model.PlatformAndroid)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if snap.Device.Rooted || snap.Device.DeveloperOptionsEnabled || snap.Device.USBDebuggingEnabled {
		t.Fatalf("security toggles must default to false: %+v", snap.Device)
	}
	if len(snap.InstalledApps) != 0 || len(snap.Messages) != 0 {
		t.Fatalf("failed artifact pulls must yield empty collections")
	}
}

func TestADBListWithoutBinaryFails(t *testing.T) {
	src := &ADBSource{timeout: time.Second, run: execCommand}
	_, err := src.ListDevices(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMultiSourceRoutesByPlatform(t *testing.T) {
	m := &MultiSource{}
	if _, err := m.Extract(context.Background(), "x", model.PlatformAndroid); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for missing android source, got %v", err)
	}
	if _, err := m.Extract(context.Background(), "x", model.Platform("watch")); err == nil {
		t.Fatalf("expected error for unsupported platform")
	}
}
