// Package model defines the shared data types of the triage orchestrator.
// Snapshots and bundles are immutable once produced; derived values are
// computed by the scoring packages, never written back.
package model

import "time"

// Platform identifies the device family a record belongs to.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// DeviceInfo carries the security-relevant device properties pulled during
// extraction. Missing fields are normalized to zero values at the data
// source boundary so scoring can treat the struct as total.
type DeviceInfo struct {
	Model                   string `json:"model"`
	Manufacturer            string `json:"manufacturer"`
	OSVersion               string `json:"os_version"`
	Serial                  string `json:"serial"`
	Rooted                  bool   `json:"rooted"`
	DeveloperOptionsEnabled bool   `json:"developer_options_enabled"`
	USBDebuggingEnabled     bool   `json:"usb_debugging_enabled"`
}

// InstalledApp is one entry of the device's installed-package list.
type InstalledApp struct {
	Name    string `json:"name"`
	Package string `json:"package"`
}

// Message is a single SMS/MMS record.
type Message struct {
	Address   string `json:"address"`
	Body      string `json:"body"`
	Direction string `json:"direction"`
}

// CallLog is a single call-history record.
type CallLog struct {
	Number   string `json:"number"`
	Duration string `json:"duration"`
	Kind     string `json:"kind"`
}

// MediaFile describes one media artifact found on the device.
type MediaFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Kind string `json:"kind"`
}

// Snapshot is the normalized view of one device's pulled data at a point in
// time. Only counts matter to scoring for call logs, media and app data.
type Snapshot struct {
	DeviceID      string         `json:"device_id"`
	Platform      Platform       `json:"platform"`
	Device        DeviceInfo     `json:"device_info"`
	InstalledApps []InstalledApp `json:"installed_apps"`
	Messages      []Message      `json:"messages"`
	CallLogs      []CallLog      `json:"call_logs"`
	MediaFiles    []MediaFile    `json:"media_files"`
	AppData       map[string]int `json:"app_data"`
	CapturedAt    time.Time      `json:"captured_at"`
}

// RiskLevel is the banded verdict derived from a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFactor is a single weighted contributor to the overall score.
type RiskFactor struct {
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

// RiskAssessment is the scoring engine's verdict for one snapshot.
// Factors preserve catalog declaration order for reproducibility.
type RiskAssessment struct {
	Score       int          `json:"score"`
	Level       RiskLevel    `json:"level"`
	Factors     []RiskFactor `json:"factors"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// AnomalyKind tags an independently-flagged unusual condition.
type AnomalyKind string

const (
	AnomalyAppCount            AnomalyKind = "APP_COUNT"
	AnomalyDeviceModification  AnomalyKind = "DEVICE_MODIFICATION"
	AnomalyCommunicationVolume AnomalyKind = "COMMUNICATION_VOLUME"
)

// Severity grades anomalies, alerts and recommendation priorities.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Anomaly is one flagged condition; it is advisory and never folded into
// the risk score.
type Anomaly struct {
	Kind        AnomalyKind `json:"kind"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"`
}

// Recommendation is one prioritized action item.
type Recommendation struct {
	Priority    Severity `json:"priority"`
	Action      string   `json:"action"`
	Description string   `json:"description"`
	Impact      Severity `json:"impact"`
}

// AnalysisBundle is the full output of one analysis run.
type AnalysisBundle struct {
	ID              string             `json:"id"`
	Snapshot        *Snapshot          `json:"snapshot"`
	Assessment      RiskAssessment     `json:"assessment"`
	Anomalies       []Anomaly          `json:"anomalies"`
	Recommendations []Recommendation   `json:"recommendations"`
	Confidence      map[string]float64 `json:"confidence_scores"`
	CreatedAt       time.Time          `json:"created_at"`
}

// DeviceRecord is one physical device currently believed connected.
type DeviceRecord struct {
	ID         string            `json:"id"`
	Platform   Platform          `json:"platform"`
	LastSeenAt time.Time         `json:"last_seen_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// MonitorStatus is the scheduler's lifecycle state.
type MonitorStatus string

const (
	MonitorIdle     MonitorStatus = "IDLE"
	MonitorRunning  MonitorStatus = "RUNNING"
	MonitorStopping MonitorStatus = "STOPPING"
)

// MonitoringState is a point-in-time copy of the scheduler state.
type MonitoringState struct {
	Status            MonitorStatus `json:"status"`
	IntervalSeconds   int           `json:"interval_seconds"`
	LastTick          time.Time     `json:"last_tick"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
}

// DeviceEventKind distinguishes connect and disconnect transitions.
type DeviceEventKind string

const (
	DeviceConnected    DeviceEventKind = "CONNECTED"
	DeviceDisconnected DeviceEventKind = "DISCONNECTED"
)

// DeviceEvent records one registry transition observed during a cycle.
type DeviceEvent struct {
	Kind   DeviceEventKind `json:"kind"`
	Device DeviceRecord    `json:"device"`
}

// AlertHighDeviceCount is raised when the connected-device count exceeds
// the configured threshold.
const AlertHighDeviceCount = "HIGH_DEVICE_COUNT"

// Alert is an advisory condition evaluated over the current device set.
type Alert struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// UpdateEvent is published once per monitoring cycle.
type UpdateEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Devices   []DeviceRecord `json:"devices"`
	Events    []DeviceEvent  `json:"events"`
	Alerts    []Alert        `json:"alerts"`
}
