// Package ingest moves reports from the traffic feeds into the tracker.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

// Upserter accepts reports. *tracking.Collection implements it.
type Upserter interface {
	UpsertReport(r adsb.Report) error
}

// Stats counts what a poller or consumer did with the reports it saw.
type Stats struct {
	Cycles   int64
	Failures int64
	Accepted int64
	Rejected int64
	LastPoll time.Time
}

// Poller fetches a feed on a fixed interval and upserts every report.
type Poller struct {
	feed     adsb.Feed
	sink     Upserter
	interval time.Duration
	retry    adsb.RetryConfig
	log      *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewPoller creates a poller for feed.
func NewPoller(feed adsb.Feed, sink Upserter, interval time.Duration, retry adsb.RetryConfig, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	p := &Poller{
		feed:     feed,
		sink:     sink,
		interval: interval,
		retry:    retry,
		log:      log.Named("poller").With(logger.String("source", string(feed.Source()))),
	}
	if p.retry.OnRetry == nil {
		p.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			p.log.Warn("Feed fetch failed, retrying",
				logger.Int("attempt", attempt+1),
				logger.Duration("delay", delay),
				logger.Error(err))
		}
	}
	return p
}

// Run polls until ctx is done, then closes the feed.
func (p *Poller) Run(ctx context.Context) error {
	defer p.feed.Close()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one fetch cycle. Failures are logged and counted; the next
// cycle tries again.
func (p *Poller) Poll(ctx context.Context) {
	reports, err := adsb.RetryWithBackoffResult(ctx, p.retry, func() ([]adsb.Report, error) {
		return p.feed.FetchReports(ctx)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Cycles++
	p.stats.LastPoll = time.Now()

	if err != nil {
		p.stats.Failures++
		if ctx.Err() == nil {
			p.log.Error("Feed fetch failed, will retry next cycle", logger.Error(err))
		}
		return
	}

	accepted, rejected := upsertAll(p.sink, reports, p.log)
	p.stats.Accepted += int64(accepted)
	p.stats.Rejected += int64(rejected)
	p.log.Debug("Polled feed",
		logger.Int("reports", len(reports)),
		logger.Int("accepted", accepted),
		logger.Int("rejected", rejected))
}

// Stats returns a copy of the counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// upsertAll pushes reports into sink. Reports of a disabled source and
// reports without any identity are expected and only counted.
func upsertAll(sink Upserter, reports []adsb.Report, log *logger.Logger) (accepted, rejected int) {
	for _, r := range reports {
		err := sink.UpsertReport(r)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, tracking.ErrSourceDisabled), errors.Is(err, tracking.ErrUnidentified):
			rejected++
		default:
			rejected++
			log.Warn("Report rejected", logger.Error(err))
		}
	}
	return accepted, rejected
}
