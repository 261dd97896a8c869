// triage-api is the HTTP glue around the triage orchestrator: one-shot
// device analysis, history listing, monitoring control and a live event
// stream. All decision logic lives in the pkg packages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"mobiletriage/pkg/anomaly"
	"mobiletriage/pkg/config"
	"mobiletriage/pkg/confidence"
	"mobiletriage/pkg/datasource"
	"mobiletriage/pkg/eventbus"
	"mobiletriage/pkg/history"
	"mobiletriage/pkg/model"
	"mobiletriage/pkg/monitor"
	"mobiletriage/pkg/pipeline"
	"mobiletriage/pkg/registry"
	"mobiletriage/pkg/report"
	"mobiletriage/pkg/risk"
	"mobiletriage/pkg/sink"
)

const serviceName = "triage-api"

type server struct {
	cfg      config.Config
	adb      *datasource.ADBSource
	analyzer *pipeline.Analyzer
	sched    *monitor.Scheduler
	hub      *sseHub
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[%s] %v", serviceName, err)
	}

	adb := datasource.NewADBSource(cfg.ADBPath, cfg.CommandTimeout)
	src := &datasource.MultiSource{
		Android: adb,
		IOS:     datasource.NewLockdownSource(cfg.CommandTimeout),
	}
	log.Printf("[%s] adb available=%t", serviceName, adb.Available())

	var sinkOpts []sink.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sinkOpts = append(sinkOpts, sink.WithRedis(rdb, cfg.RedisChannel))
		log.Printf("[%s] mirroring monitor updates to redis %s", serviceName, cfg.RedisAddr)
	}
	snk, err := sink.New(filepath.Join(cfg.DataDir, "logs"), sinkOpts...)
	if err != nil {
		log.Fatalf("[%s] %v", serviceName, err)
	}

	bus := eventbus.NewBus(64)
	defer bus.Close()
	bus.Register(snk)

	hub := newSSEHub()
	bus.Register(hub)

	hist := history.NewBuffer(cfg.HistoryCapacity)
	analyzer := pipeline.New(
		src,
		risk.NewEngine(risk.Catalog(cfg.Weights)),
		anomaly.NewDetector(anomaly.Checks(cfg.Thresholds)),
		confidence.Static{},
		hist,
		bus,
	)
	sched := monitor.New(monitor.Config{
		Interval:       cfg.MonitorInterval,
		ErrorBackoff:   cfg.ErrorBackoff,
		AlertThreshold: cfg.AlertThreshold,
	}, src, registry.New(), bus, snk)

	s := &server{cfg: cfg, adb: adb, analyzer: analyzer, sched: sched, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /monitor/start", s.handleMonitorStart)
	mux.HandleFunc("POST /monitor/stop", s.handleMonitorStop)
	mux.HandleFunc("GET /monitor/state", s.handleMonitorState)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := accessLog(requireAuth(cfg.AuthSecret, mux))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[%s] listening on %s", serviceName, cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[%s] serve: %v", serviceName, err)
		}
	}()

	<-ctx.Done()
	log.Printf("[%s] shutting down", serviceName)

	s.sched.Stop()
	if done := s.sched.Done(); done != nil {
		select {
		case <-done:
		case <-time.After(cfg.MonitorInterval + time.Second):
			log.Printf("[%s] monitor did not stop within a cycle", serviceName)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	platform := model.Platform(r.URL.Query().Get("platform"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device query parameter is required")
		return
	}
	if platform == "" {
		platform = model.PlatformAndroid
	}
	bundle, err := s.analyzer.Analyze(r.Context(), deviceID, platform)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	entries := s.analyzer.History()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	for _, b := range s.analyzer.History() {
		if b.ID == id {
			writeJSON(w, http.StatusOK, report.Render(b))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("no bundle %q in history", id))
}

func (s *server) handleMonitorStart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Start())
}

func (s *server) handleMonitorStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Stop())
}

func (s *server) handleMonitorState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.State())
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":       serviceName,
		"adb_available": s.adb.Available(),
		"monitor":       s.sched.State().Status,
		"time":          time.Now().UTC(),
	})
}

// handleEvents streams monitoring updates over SSE until the client goes
// away.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// sseHub fans monitoring updates out to connected event-stream clients.
// Slow clients drop updates rather than stalling the bus.
type sseHub struct {
	mu      sync.Mutex
	clients map[chan model.UpdateEvent]struct{}
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[chan model.UpdateEvent]struct{})}
}

func (h *sseHub) subscribe() chan model.UpdateEvent {
	ch := make(chan model.UpdateEvent, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *sseHub) unsubscribe(ch chan model.UpdateEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *sseHub) Handle(_ context.Context, evt eventbus.Event) {
	update, ok := evt.Payload.(model.UpdateEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- update:
		default:
		}
	}
}

func (h *sseHub) Topics() []string { return []string{eventbus.TopicMonitorUpdate} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
