package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultThreshold is the number of qualifying events between scheduled exports.
const DefaultThreshold = 15

// Exporter serializes a graph to its exchange formats.
type Exporter interface {
	Export(ctx context.Context, g *Graph) error
}

// SchedulerStats is a point-in-time view of the scheduler counters.
type SchedulerStats struct {
	EventsSinceLastExport int
	Threshold             int
	ExportsPerformed      int64
	ExportFailures        int64
	LastExportAt          time.Time
}

// Scheduler decides when the graph is rebuilt and exported.
type Scheduler struct {
	builder   *Builder
	exporter  Exporter
	threshold int
	group     singleflight.Group
	logger    *zap.Logger

	mu                    sync.Mutex
	eventsSinceLastExport int
	lastExportAt          time.Time

	exportsPerformed atomic.Int64
	exportFailures   atomic.Int64
}

// NewScheduler creates a scheduler that exports after every threshold qualifying events.
func NewScheduler(builder *Builder, exporter Exporter, threshold int, logger *zap.Logger) *Scheduler {
	if threshold < 1 {
		threshold = DefaultThreshold
	}

	return &Scheduler{
		builder:   builder,
		exporter:  exporter,
		threshold: threshold,
		logger:    logger.Named("graph_scheduler"),
	}
}

// OnQualifyingEvent counts an event and exports once the threshold is reached.
// It reports whether an export succeeded as a result of this event.
func (s *Scheduler) OnQualifyingEvent(ctx context.Context) bool {
	s.mu.Lock()
	s.eventsSinceLastExport++
	due := s.eventsSinceLastExport >= s.threshold
	s.mu.Unlock()

	if !due {
		return false
	}

	return s.run(ctx, "threshold") == nil
}

// OnMembershipChange exports immediately regardless of the counter.
func (s *Scheduler) OnMembershipChange(ctx context.Context) {
	_ = s.run(ctx, "membership")
}

// ExportNow forces an out-of-band export and returns its error to the caller.
func (s *Scheduler) ExportNow(ctx context.Context) error {
	return s.run(ctx, "forced")
}

// Stats returns the current counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStats{
		EventsSinceLastExport: s.eventsSinceLastExport,
		Threshold:             s.threshold,
		ExportsPerformed:      s.exportsPerformed.Load(),
		ExportFailures:        s.exportFailures.Load(),
		LastExportAt:          s.lastExportAt,
	}
}

// ExportsPerformed returns the number of successful exports.
func (s *Scheduler) ExportsPerformed() int64 {
	return s.exportsPerformed.Load()
}

// run performs one export. Concurrent callers share a single in-flight export,
// which runs detached from the cancellation of whichever caller started it.
// A caller whose context ends stops waiting without affecting the others.
// Failures are logged and leave the event counter untouched so the next
// qualifying event tries again.
func (s *Scheduler) run(ctx context.Context, trigger string) error {
	detached := context.WithoutCancel(ctx)

	ch := s.group.DoChan("export", func() (any, error) {
		s.mu.Lock()
		observed := s.eventsSinceLastExport
		s.mu.Unlock()

		start := time.Now()

		if err := s.export(detached); err != nil {
			s.exportFailures.Add(1)
			s.logger.Error("Graph export failed",
				zap.String("trigger", trigger),
				zap.Int("events_since_last_export", observed),
				zap.Error(err))

			return nil, err
		}

		s.mu.Lock()
		// Events counted while the export ran belong to the next batch
		s.eventsSinceLastExport = max(s.eventsSinceLastExport-observed, 0)
		s.lastExportAt = time.Now()
		s.mu.Unlock()

		s.exportsPerformed.Add(1)
		s.logger.Info("Graph exported",
			zap.String("trigger", trigger),
			zap.Duration("duration", time.Since(start)))

		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined in-flight export", zap.String("trigger", trigger))
		}

		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) export(ctx context.Context) error {
	g, err := s.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	if err := s.exporter.Export(ctx, g); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}

	return nil
}
