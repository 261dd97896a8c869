// Package pipeline runs one-shot device analyses: extract, score, detect,
// recommend, bundle, and append to the bounded history.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mobiletriage/pkg/anomaly"
	"mobiletriage/pkg/confidence"
	"mobiletriage/pkg/datasource"
	"mobiletriage/pkg/eventbus"
	"mobiletriage/pkg/history"
	"mobiletriage/pkg/model"
	"mobiletriage/pkg/recommend"
	"mobiletriage/pkg/risk"
)

var (
	mAnalyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "pipeline", Name: "analyses_total", Help: "Analyses run, by outcome."},
		[]string{"outcome"},
	)
	mEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "pipeline", Name: "history_evictions_total", Help: "Bundles evicted from the history buffer."},
	)
)

func init() {
	_ = prometheus.Register(mAnalyses)
	_ = prometheus.Register(mEvictions)
}

// Analyzer orchestrates one analysis run end to end. The scoring stages
// are pure, so concurrent Analyze calls interfere only at the history
// append, which the buffer linearizes.
type Analyzer struct {
	source     datasource.Source
	engine     *risk.Engine
	detector   *anomaly.Detector
	confidence confidence.Provider
	history    *history.Buffer
	bus        eventbus.Publisher
}

// New wires an analyzer. bus may be nil when nobody listens for
// analysis.done events.
func New(src datasource.Source, engine *risk.Engine, det *anomaly.Detector, conf confidence.Provider, hist *history.Buffer, bus eventbus.Publisher) *Analyzer {
	return &Analyzer{
		source:     src,
		engine:     engine,
		detector:   det,
		confidence: conf,
		history:    hist,
		bus:        bus,
	}
}

// Analyze extracts a snapshot and derives the full bundle. A source
// failure returns an error carrying the underlying cause; nothing is
// appended to history on failure.
func (a *Analyzer) Analyze(ctx context.Context, deviceID string, platform model.Platform) (*model.AnalysisBundle, error) {
	snap, err := a.source.Extract(ctx, deviceID, platform)
	if err != nil {
		mAnalyses.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("extraction failed for %s: %w", deviceID, err)
	}

	assessment := a.engine.Score(snap)
	anomalies := a.detector.Detect(snap)
	recs := recommend.Recommend(snap, assessment)

	bundle := &model.AnalysisBundle{
		ID:              uuid.NewString(),
		Snapshot:        snap,
		Assessment:      assessment,
		Anomalies:       anomalies,
		Recommendations: recs,
		Confidence:      a.confidence.Scores(snap),
		CreatedAt:       time.Now().UTC(),
	}

	if a.history.Append(bundle) {
		mEvictions.Inc()
	}
	mAnalyses.WithLabelValues("ok").Inc()

	if a.bus != nil {
		_ = a.bus.Publish(ctx, eventbus.Event{
			Type:    eventbus.TopicAnalysisDone,
			Source:  "pipeline",
			Payload: bundle,
		})
	}
	return bundle, nil
}

// History returns a copy of the retained bundles, most recent last.
func (a *Analyzer) History() []*model.AnalysisBundle {
	return a.history.List()
}
