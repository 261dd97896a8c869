// Package sink appends monitoring updates and analysis records to daily
// JSONL files, optionally mirroring updates to a Redis channel for
// external consumers.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mobiletriage/pkg/eventbus"
	"mobiletriage/pkg/model"
)

// DefaultChannel is the Redis channel updates are mirrored to.
const DefaultChannel = "triage.monitor"

// JSONL is an append-only sink. Writes are serialized; each record is one
// JSON line.
type JSONL struct {
	mu      sync.Mutex
	dir     string
	rdb     *redis.Client
	channel string
}

// Option tweaks sink construction.
type Option func(*JSONL)

// WithRedis mirrors monitoring updates to the given client and channel.
// An empty channel uses DefaultChannel.
func WithRedis(client *redis.Client, channel string) Option {
	return func(s *JSONL) {
		s.rdb = client
		if channel == "" {
			channel = DefaultChannel
		}
		s.channel = channel
	}
}

// New creates a sink writing under dir.
func New(dir string, opts ...Option) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink dir: %w", err)
	}
	s := &JSONL{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordUpdate appends one monitoring update and mirrors it to Redis when
// configured. A failed mirror fails the record so the monitoring loop can
// back off.
func (s *JSONL) RecordUpdate(evt model.UpdateEvent) error {
	if err := s.appendLine("monitoring", evt); err != nil {
		return err
	}
	if s.rdb != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode update: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
			return fmt.Errorf("redis mirror: %w", err)
		}
	}
	return nil
}

// RecordBundle appends one analysis bundle.
func (s *JSONL) RecordBundle(b *model.AnalysisBundle) error {
	return s.appendLine("analysis", b)
}

func (s *JSONL) appendLine(prefix string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := fmt.Sprintf("%s_%s.jsonl", prefix, time.Now().UTC().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}

// Handle lets the sink subscribe to the bus for completed analyses.
func (s *JSONL) Handle(_ context.Context, evt eventbus.Event) {
	if b, ok := evt.Payload.(*model.AnalysisBundle); ok {
		_ = s.RecordBundle(b)
	}
}

// Topics declares the bus subscriptions.
func (s *JSONL) Topics() []string { return []string{eventbus.TopicAnalysisDone} }
