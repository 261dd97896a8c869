// Package confidence isolates per-category analysis confidence behind an
// interface so a real model can replace the static constants later.
package confidence

import "mobiletriage/pkg/model"

// Category keys present in every confidence map.
const (
	CategoryRiskAssessment     = "risk_assessment"
	CategoryBehavioralAnalysis = "behavioral_analysis"
	CategoryAnomalyDetection   = "anomaly_detection"
	CategoryThreatIntelligence = "threat_intelligence"
	CategoryOverall            = "overall_confidence"
)

// Provider yields per-category confidence for one analysis. Values must be
// in [0,1].
type Provider interface {
	Scores(bundleSnapshot *model.Snapshot) map[string]float64
}

// Static returns the same constants regardless of input. Kept for
// compatibility with prior output.
type Static struct{}

// Scores returns a fresh map so callers may not alias shared state.
func (Static) Scores(*model.Snapshot) map[string]float64 {
	return map[string]float64{
		CategoryRiskAssessment:     0.89,
		CategoryBehavioralAnalysis: 0.78,
		CategoryAnomalyDetection:   0.82,
		CategoryThreatIntelligence: 0.75,
		CategoryOverall:            0.81,
	}
}
