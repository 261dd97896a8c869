// Package anomaly flags unusual device conditions independently of risk
// scoring. Detection is threshold-based with fixed per-check confidence.
package anomaly

import (
	"fmt"

	"mobiletriage/pkg/model"
)

// Check is one detection rule. Checks run in declaration order and the
// result list is never reordered by severity.
type Check struct {
	Name string
	Eval func(s *model.Snapshot) (model.Anomaly, bool)
}

// Thresholds holds the tunable detection knobs.
type Thresholds struct {
	AppCount           int
	AppCountConfidence float64
	RootedConfidence   float64
	MessageVolume      int
	MessageConfidence  float64
}

// DefaultThresholds returns the compatibility detection set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AppCount:           200,
		AppCountConfidence: 0.85,
		RootedConfidence:   0.95,
		MessageVolume:      5000,
		MessageConfidence:  0.75,
	}
}

// Checks builds the default check table from the given thresholds.
func Checks(t Thresholds) []Check {
	return []Check{
		{
			Name: "app_count",
			Eval: func(s *model.Snapshot) (model.Anomaly, bool) {
				n := len(s.InstalledApps)
				if n <= t.AppCount {
					return model.Anomaly{}, false
				}
				return model.Anomaly{
					Kind:        model.AnomalyAppCount,
					Severity:    model.SeverityMedium,
					Description: fmt.Sprintf("Unusually high number of installed apps: %d", n),
					Confidence:  t.AppCountConfidence,
				}, true
			},
		},
		{
			Name: "device_modification",
			Eval: func(s *model.Snapshot) (model.Anomaly, bool) {
				if !s.Device.Rooted {
					return model.Anomaly{}, false
				}
				return model.Anomaly{
					Kind:        model.AnomalyDeviceModification,
					Severity:    model.SeverityHigh,
					Description: "Device shows signs of rooting/jailbreaking",
					Confidence:  t.RootedConfidence,
				}, true
			},
		},
		{
			Name: "communication_volume",
			Eval: func(s *model.Snapshot) (model.Anomaly, bool) {
				if len(s.Messages) <= t.MessageVolume {
					return model.Anomaly{}, false
				}
				return model.Anomaly{
					Kind:        model.AnomalyCommunicationVolume,
					Severity:    model.SeverityMedium,
					Description: "Extremely high message volume",
					Confidence:  t.MessageConfidence,
				}, true
			},
		},
	}
}

// Detector runs the check table over snapshots. Pure and stateless.
type Detector struct {
	checks []Check
}

// NewDetector builds a detector over an explicit check table.
func NewDetector(checks []Check) *Detector { return &Detector{checks: checks} }

// NewDefaultDetector builds a detector over the default table.
func NewDefaultDetector() *Detector { return NewDetector(Checks(DefaultThresholds())) }

// Detect returns the matched anomalies in table order. Total: a nil
// snapshot produces no anomalies.
func (d *Detector) Detect(s *model.Snapshot) []model.Anomaly {
	if s == nil {
		s = &model.Snapshot{}
	}
	var out []model.Anomaly
	for _, c := range d.checks {
		if a, ok := c.Eval(s); ok {
			out = append(out, a)
		}
	}
	return out
}
