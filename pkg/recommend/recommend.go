// Package recommend maps a risk verdict to prioritized action items.
package recommend

import "mobiletriage/pkg/model"

// Action identifiers kept stable for downstream consumers.
const (
	ActionImmediateReview = "IMMEDIATE_SECURITY_REVIEW"
	ActionRemoveRoot      = "REMOVE_ROOT_ACCESS"
	ActionRegularAudit    = "REGULAR_SECURITY_AUDIT"
)

// Recommend builds the action list for one assessment. Conditional items
// come first in a fixed order; the baseline audit item always closes the
// list. Pure and total.
func Recommend(s *model.Snapshot, assessment model.RiskAssessment) []model.Recommendation {
	var out []model.Recommendation
	if assessment.Level == model.RiskHigh || assessment.Level == model.RiskCritical {
		out = append(out, model.Recommendation{
			Priority:    model.SeverityHigh,
			Action:      ActionImmediateReview,
			Description: "Device shows critical security risks requiring immediate attention",
			Impact:      model.SeverityHigh,
		})
	}
	if s != nil && s.Device.Rooted {
		out = append(out, model.Recommendation{
			Priority:    model.SeverityHigh,
			Action:      ActionRemoveRoot,
			Description: "Remove root access to improve device security",
			Impact:      model.SeverityMedium,
		})
	}
	out = append(out, model.Recommendation{
		Priority:    model.SeverityMedium,
		Action:      ActionRegularAudit,
		Description: "Perform regular security audits of mobile devices",
		Impact:      model.SeverityHigh,
	})
	return out
}
