package dashboard

import (
	"context"
	"sync"

	"jobtracker/client/internal/models"
	"jobtracker/client/internal/notify"

	"go.uber.org/zap"
)

const StatsFailedNotice = "Failed to load statistics"

type StatsSource interface {
	Stats(ctx context.Context) (*models.StatisticsSnapshot, error)
}

// StatsPanel holds the aggregate counts. They always come from the stats
// endpoint, never from the page on screen.
type StatsPanel struct {
	source   StatsSource
	reporter notify.Reporter
	logger   *zap.Logger

	mu        sync.Mutex
	snapshot  *models.StatisticsSnapshot
	refreshes uint64
	listeners []func(models.StatisticsSnapshot)
}

func NewStatsPanel(logger *zap.Logger, source StatsSource, reporter notify.Reporter) *StatsPanel {
	return &StatsPanel{
		source:   source,
		reporter: reporter,
		logger:   logger,
	}
}

// Snapshot returns the last loaded statistics, and false before the first
// successful load.
func (p *StatsPanel) Snapshot() (models.StatisticsSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return models.StatisticsSnapshot{}, false
	}
	return *p.snapshot, true
}

// Refreshes counts the refreshes requested so far.
func (p *StatsPanel) Refreshes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *StatsPanel) OnChange(fn func(models.StatisticsSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Refresh refetches the statistics. A failure keeps the previous snapshot.
func (p *StatsPanel) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "StatsPanel.Refresh")
	defer span.End()

	p.mu.Lock()
	p.refreshes++
	refresh := p.refreshes
	p.mu.Unlock()

	stats, err := p.source.Stats(ctx)

	p.mu.Lock()
	if refresh != p.refreshes {
		p.mu.Unlock()
		p.logger.Debug("discarding superseded statistics", zap.Uint64("refresh", refresh))
		return ErrSuperseded
	}
	if err != nil {
		p.mu.Unlock()
		span.RecordError(err)
		p.logger.Warn("failed to load statistics", zap.Error(err))
		p.reporter.NotifyError(StatsFailedNotice)
		return err
	}
	p.snapshot = stats
	snapshot := *stats
	listeners := append(([]func(models.StatisticsSnapshot))(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}
