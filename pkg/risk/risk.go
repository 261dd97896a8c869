// Package risk evaluates extraction snapshots against a declarative rule
// catalog and produces a deterministic risk assessment.
package risk

import (
	"fmt"
	"strings"
	"time"

	"mobiletriage/pkg/model"
)

// Rule is one scoring rule: a predicate plus the factor it contributes.
// Rules never fail; a snapshot with absent fields simply does not match.
type Rule struct {
	Name string
	Eval func(s *model.Snapshot) (model.RiskFactor, bool)
}

// Weights holds the tunable scoring knobs. The zero value is not usable;
// start from DefaultWeights.
type Weights struct {
	Rooted                 int
	DeveloperOptions       int
	PerSuspiciousApp       int
	HighMessageVolume      int
	MessageVolumeThreshold int
	SuspiciousKeywords     []string
}

// DefaultWeights returns the compatibility rule set.
func DefaultWeights() Weights {
	return Weights{
		Rooted:                 30,
		DeveloperOptions:       15,
		PerSuspiciousApp:       5,
		HighMessageVolume:      10,
		MessageVolumeThreshold: 1000,
		SuspiciousKeywords:     []string{"hack", "spy", "track", "monitor", "stealth"},
	}
}

// Catalog builds the default rule set from the given weights. Declaration
// order here is evaluation order and therefore factor order.
func Catalog(w Weights) []Rule {
	return []Rule{
		{
			Name: "rooted_device",
			Eval: func(s *model.Snapshot) (model.RiskFactor, bool) {
				if !s.Device.Rooted {
					return model.RiskFactor{}, false
				}
				return model.RiskFactor{Description: "Device is rooted/jailbroken", Weight: w.Rooted}, true
			},
		},
		{
			Name: "developer_options",
			Eval: func(s *model.Snapshot) (model.RiskFactor, bool) {
				if !s.Device.DeveloperOptionsEnabled {
					return model.RiskFactor{}, false
				}
				return model.RiskFactor{Description: "Developer options enabled", Weight: w.DeveloperOptions}, true
			},
		},
		{
			Name: "suspicious_apps",
			Eval: func(s *model.Snapshot) (model.RiskFactor, bool) {
				n := len(SuspiciousApps(s.InstalledApps, w.SuspiciousKeywords))
				if n == 0 {
					return model.RiskFactor{}, false
				}
				return model.RiskFactor{
					Description: fmt.Sprintf("Suspicious apps detected: %d", n),
					Weight:      n * w.PerSuspiciousApp,
				}, true
			},
		},
		{
			Name: "message_volume",
			Eval: func(s *model.Snapshot) (model.RiskFactor, bool) {
				if len(s.Messages) <= w.MessageVolumeThreshold {
					return model.RiskFactor{}, false
				}
				return model.RiskFactor{Description: "High volume of messages", Weight: w.HighMessageVolume}, true
			},
		},
	}
}

// SuspiciousApps returns the apps whose name or package id contains any of
// the keywords, case-insensitively. Substring match, not tokenized.
func SuspiciousApps(apps []model.InstalledApp, keywords []string) []model.InstalledApp {
	var out []model.InstalledApp
	for _, app := range apps {
		name := strings.ToLower(app.Name)
		pkg := strings.ToLower(app.Package)
		for _, kw := range keywords {
			if strings.Contains(name, kw) || strings.Contains(pkg, kw) {
				out = append(out, app)
				break
			}
		}
	}
	return out
}

// LevelForScore maps a score to its risk band, highest bound first.
func LevelForScore(score int) model.RiskLevel {
	switch {
	case score >= 60:
		return model.RiskCritical
	case score >= 40:
		return model.RiskHigh
	case score >= 20:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Engine scores snapshots against a rule catalog. Pure and stateless; safe
// for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over an explicit catalog.
func NewEngine(rules []Rule) *Engine { return &Engine{rules: rules} }

// NewDefaultEngine builds an engine over the default catalog.
func NewDefaultEngine() *Engine { return NewEngine(Catalog(DefaultWeights())) }

// Score evaluates every rule in catalog order. It is total: a nil snapshot
// scores zero.
func (e *Engine) Score(s *model.Snapshot) model.RiskAssessment {
	if s == nil {
		s = &model.Snapshot{}
	}
	var score int
	var factors []model.RiskFactor
	for _, r := range e.rules {
		if f, ok := r.Eval(s); ok {
			factors = append(factors, f)
			score += f.Weight
		}
	}
	return model.RiskAssessment{
		Score:       score,
		Level:       LevelForScore(score),
		Factors:     factors,
		EvaluatedAt: time.Now().UTC(),
	}
}
