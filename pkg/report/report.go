// Package report renders analysis bundles into human-readable formats.
// Pure templating: no decision logic lives here.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mobiletriage/pkg/model"
)

// Report is one rendered bundle in all supported formats.
type Report struct {
	ID          string    `json:"report_id"`
	BundleID    string    `json:"bundle_id"`
	Markdown    string    `json:"markdown"`
	Text        string    `json:"text"`
	Summary     string    `json:"summary"`
	DataHash    string    `json:"data_hash"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Render produces all formats for one bundle.
func Render(b *model.AnalysisBundle) Report {
	return Report{
		ID:          uuid.NewString(),
		BundleID:    b.ID,
		Markdown:    renderMarkdown(b),
		Text:        renderText(b),
		Summary:     Summary(b),
		DataHash:    dataHash(b.Snapshot),
		GeneratedAt: time.Now().UTC(),
	}
}

// Summary is the one-line digest used in listings and notifications.
func Summary(b *model.AnalysisBundle) string {
	return fmt.Sprintf("%s %s: risk %s (score %d), %d anomalies, %d recommendations",
		b.Snapshot.Device.Manufacturer, b.Snapshot.Device.Model,
		b.Assessment.Level, b.Assessment.Score,
		len(b.Anomalies), len(b.Recommendations))
}

func renderMarkdown(b *model.AnalysisBundle) string {
	var w strings.Builder
	fmt.Fprintf(&w, "# Device Triage Report\n\n")
	fmt.Fprintf(&w, "Bundle `%s`, created %s\n\n", b.ID, b.CreatedAt.Format(time.RFC3339))

	fmt.Fprintf(&w, "## Device\n\n")
	d := b.Snapshot.Device
	fmt.Fprintf(&w, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&w, "| Model | %s |\n", d.Model)
	fmt.Fprintf(&w, "| Manufacturer | %s |\n", d.Manufacturer)
	fmt.Fprintf(&w, "| OS version | %s |\n", d.OSVersion)
	fmt.Fprintf(&w, "| Serial | %s |\n", d.Serial)
	fmt.Fprintf(&w, "| Rooted | %t |\n", d.Rooted)
	fmt.Fprintf(&w, "| Developer options | %t |\n", d.DeveloperOptionsEnabled)
	fmt.Fprintf(&w, "| USB debugging | %t |\n\n", d.USBDebuggingEnabled)

	fmt.Fprintf(&w, "## Risk assessment\n\n")
	fmt.Fprintf(&w, "Score **%d**, level **%s**\n\n", b.Assessment.Score, b.Assessment.Level)
	for _, f := range b.Assessment.Factors {
		fmt.Fprintf(&w, "- %s (+%d)\n", f.Description, f.Weight)
	}
	if len(b.Assessment.Factors) == 0 {
		fmt.Fprintf(&w, "- No risk factors matched\n")
	}

	fmt.Fprintf(&w, "\n## Anomalies\n\n")
	if len(b.Anomalies) == 0 {
		fmt.Fprintf(&w, "None detected.\n")
	}
	for _, a := range b.Anomalies {
		fmt.Fprintf(&w, "- [%s/%s] %s (confidence %.2f)\n", a.Kind, a.Severity, a.Description, a.Confidence)
	}

	fmt.Fprintf(&w, "\n## Recommendations\n\n")
	for i, r := range b.Recommendations {
		fmt.Fprintf(&w, "%d. **%s** (%s): %s\n", i+1, r.Action, r.Priority, r.Description)
	}

	fmt.Fprintf(&w, "\n## Extraction summary\n\n")
	s := b.Snapshot
	fmt.Fprintf(&w, "- Installed apps: %d\n", len(s.InstalledApps))
	fmt.Fprintf(&w, "- Messages: %d\n", len(s.Messages))
	fmt.Fprintf(&w, "- Call logs: %d\n", len(s.CallLogs))
	fmt.Fprintf(&w, "- Media files: %d\n", len(s.MediaFiles))
	return w.String()
}

func renderText(b *model.AnalysisBundle) string {
	var w strings.Builder
	fmt.Fprintf(&w, "DEVICE TRIAGE REPORT %s\n", b.ID)
	fmt.Fprintf(&w, "Device: %s %s (%s %s)\n",
		b.Snapshot.Device.Manufacturer, b.Snapshot.Device.Model,
		b.Snapshot.Platform, b.Snapshot.Device.OSVersion)
	fmt.Fprintf(&w, "Risk: %s (score %d)\n", b.Assessment.Level, b.Assessment.Score)
	for _, f := range b.Assessment.Factors {
		fmt.Fprintf(&w, "  factor: %s (+%d)\n", f.Description, f.Weight)
	}
	for _, a := range b.Anomalies {
		fmt.Fprintf(&w, "  anomaly: %s %s %s\n", a.Kind, a.Severity, a.Description)
	}
	for _, r := range b.Recommendations {
		fmt.Fprintf(&w, "  action: %s [%s]\n", r.Action, r.Priority)
	}
	return w.String()
}

// dataHash fingerprints the snapshot so report consumers can tie a report
// back to the exact extraction it was rendered from.
func dataHash(s *model.Snapshot) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
