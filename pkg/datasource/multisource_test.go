package datasource

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mobiletriage/pkg/model"
)

// fakeSource scripts one family for MultiSource tests.
type fakeSource struct {
	devices   []model.DeviceRecord
	listErr   error
	extracted string
}

func (f *fakeSource) ListDevices(_ context.Context) ([]model.DeviceRecord, error) {
	return f.devices, f.listErr
}

func (f *fakeSource) Extract(_ context.Context, deviceID string, _ model.Platform) (*model.Snapshot, error) {
	f.extracted = deviceID
	return &model.Snapshot{DeviceID: deviceID}, nil
}

func TestMultiSourceMergesBothFamilies(t *testing.T) {
	m := &MultiSource{
		Android: &fakeSource{devices: []model.DeviceRecord{{ID: "a1", Platform: model.PlatformAndroid}}},
		IOS:     &fakeSource{devices: []model.DeviceRecord{{ID: "i1", Platform: model.PlatformIOS}}},
	}
	devs, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devs) != 2 || devs[0].ID != "a1" || devs[1].ID != "i1" {
		t.Fatalf("unexpected merge: %+v", devs)
	}
}

func TestMultiSourceEmptyScanPlusFailingFamilySucceeds(t *testing.T) {
	// adb reachable but no device attached, iOS transport absent: the
	// scan must succeed with zero devices, not error out.
	m := &MultiSource{
		Android: &fakeSource{},
		IOS:     &fakeSource{listErr: errors.New("idevice_id not installed")},
	}
	devs, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("one reachable family must be enough: %v", err)
	}
	if len(devs) != 0 {
		t.Fatalf("expected empty device set, got %+v", devs)
	}
}

func TestMultiSourcePartialFailureKeepsSurvivingFamily(t *testing.T) {
	m := &MultiSource{
		Android: &fakeSource{listErr: errors.New("adb gone")},
		IOS:     &fakeSource{devices: []model.DeviceRecord{{ID: "i1", Platform: model.PlatformIOS}}},
	}
	devs, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devs) != 1 || devs[0].ID != "i1" {
		t.Fatalf("expected the iOS device to survive, got %+v", devs)
	}
}

func TestMultiSourceAllFamiliesFailing(t *testing.T) {
	m := &MultiSource{
		Android: &fakeSource{listErr: errors.New("adb gone")},
		IOS:     &fakeSource{listErr: errors.New("idevice_id gone")},
	}
	_, err := m.ListDevices(context.Background())
	if err == nil {
		t.Fatalf("expected error when every family fails")
	}
	if !strings.Contains(err.Error(), "adb gone") || !strings.Contains(err.Error(), "idevice_id gone") {
		t.Fatalf("error must carry both causes, got %v", err)
	}
}

func TestMultiSourceExtractRoutesToFamily(t *testing.T) {
	android := &fakeSource{}
	ios := &fakeSource{}
	m := &MultiSource{Android: android, IOS: ios}

	if _, err := m.Extract(context.Background(), "a1", model.PlatformAndroid); err != nil {
		t.Fatalf("extract android: %v", err)
	}
	if android.extracted != "a1" || ios.extracted != "" {
		t.Fatalf("android extraction routed wrong: %q / %q", android.extracted, ios.extracted)
	}
	if _, err := m.Extract(context.Background(), "i1", model.PlatformIOS); err != nil {
		t.Fatalf("extract ios: %v", err)
	}
	if ios.extracted != "i1" {
		t.Fatalf("ios extraction routed wrong: %q", ios.extracted)
	}
}
