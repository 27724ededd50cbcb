// Package announce runs one announcement cycle: fetch trending candidates,
// drop those announced inside the window, post the rest, and record what was posted.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/observability/metrics"
	"rust-trends/internal/observability/tracing"
	"rust-trends/internal/repository"
	"rust-trends/internal/usecase/post"
	"rust-trends/internal/usecase/selection"
)

// TrendSource produces the ordered batch of candidates for a run.
// Implementations validate items at their boundary; a failure to reach the
// upstream or to parse its response is reported as entity.ErrFetchFailed.
type TrendSource interface {
	Fetch(ctx context.Context) ([]entity.Candidate, error)
	Name() string
}

// Publisher delivers one rendered post. Any failure is reported as entity.ErrPublishFailed.
type Publisher interface {
	Publish(ctx context.Context, message string) error
	Name() string
}

// LastRunToucher stamps the end of a run on the schema record.
type LastRunToucher interface {
	TouchLastRun(ctx context.Context, at time.Time) error
}

// Config controls one run.
type Config struct {
	// WindowDays is how long an identity stays suppressed after it was announced.
	WindowDays int
	// MaxPosts caps the posts delivered per run. 0 means no cap.
	MaxPosts int
	// PruneAfterDays removes ledger entries older than this many days at the end
	// of a run. 0 disables pruning. Values below WindowDays are raised to it.
	PruneAfterDays int
	// DryRun formats and logs posts without publishing or recording them.
	DryRun bool
}

// DefaultConfig returns the configuration of a plain run.
func DefaultConfig() Config {
	return Config{WindowDays: entity.DefaultWindowDays}
}

// RunStats contains statistics about one run.
type RunStats struct {
	RunID         string
	Fetched       int
	Eligible      int
	Suppressed    int
	Published     int
	Invalid       int
	PublishFailed int
	Pruned        int64
	DryRun        bool
	Duration      time.Duration
}

// Service orchestrates announcement runs.
type Service struct {
	Source    TrendSource
	Ledger    repository.LedgerRepository
	Publisher Publisher
	Store     LastRunToucher
	Config    Config
	Now       func() time.Time
}

// NewService creates a new announce Service with the provided dependencies.
// store may be nil, in which case the schema record is not stamped.
func NewService(
	source TrendSource,
	ledger repository.LedgerRepository,
	publisher Publisher,
	store LastRunToucher,
	cfg Config,
) *Service {
	return &Service{
		Source:    source,
		Ledger:    ledger,
		Publisher: publisher,
		Store:     store,
		Config:    cfg,
		Now:       time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) windowDays() int {
	if s.Config.WindowDays <= 0 {
		return entity.DefaultWindowDays
	}
	return s.Config.WindowDays
}

// Run performs one fetch, select, format, publish, record cycle.
//
// Fatal errors (entity.ErrFetchFailed, entity.ErrStoreUnavailable) abort the run
// and are returned together with the stats gathered so far. Invalid candidates
// and publish failures are counted and skipped; a candidate that failed to
// publish is not recorded, so the next run offers it again.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{
		RunID:  uuid.NewString(),
		DryRun: s.Config.DryRun,
	}

	logger := logging.WithRunID(logging.FromContext(ctx), stats.RunID)
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.GetTracer().Start(ctx, "announce.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", stats.RunID),
		attribute.String("source", s.Source.Name()),
		attribute.String("publisher", s.Publisher.Name()),
		attribute.Bool("dry_run", s.Config.DryRun),
	)

	err := s.run(ctx, logger, stats)
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("candidates.fetched", stats.Fetched),
		attribute.Int("candidates.eligible", stats.Eligible),
		attribute.Int("posts.published", stats.Published),
		attribute.Int("posts.failed", stats.PublishFailed),
	)
	if err != nil {
		tracing.Fail(span, err, "run failed")
		logger.Error("announcement run failed",
			slog.String("error", logging.SanitizeError(err)),
			slog.Int("published", stats.Published),
			slog.Duration("duration", stats.Duration))
		return stats, err
	}

	logger.Info("announcement run completed",
		slog.Int("fetched", stats.Fetched),
		slog.Int("eligible", stats.Eligible),
		slog.Int("suppressed", stats.Suppressed),
		slog.Int("published", stats.Published),
		slog.Int("invalid", stats.Invalid),
		slog.Int("publish_failed", stats.PublishFailed),
		slog.Int64("pruned", stats.Pruned),
		slog.Bool("dry_run", stats.DryRun),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, stats *RunStats) error {
	now := s.now()

	candidates, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	stats.Fetched = len(candidates)

	res, err := s.selectEligible(ctx, candidates, now)
	if err != nil {
		return err
	}
	stats.Eligible = len(res.Eligible)
	stats.Suppressed = len(res.Suppressed)
	if len(res.Suppressed) > 0 {
		logger.Info("candidates suppressed",
			slog.Any("identities", res.SuppressedIdentities()),
			slog.Int("window_days", s.windowDays()))
	}

	for _, c := range res.Eligible {
		if s.Config.MaxPosts > 0 && stats.Published >= s.Config.MaxPosts {
			logger.Info("post limit reached",
				slog.Int("max_posts", s.Config.MaxPosts))
			break
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		if err := s.announce(ctx, logger, c, stats); err != nil {
			return err
		}
	}

	if !s.Config.DryRun {
		if err := s.prune(ctx, logger, now, stats); err != nil {
			return err
		}
	}

	if s.Store != nil && !s.Config.DryRun {
		if err := s.Store.TouchLastRun(context.WithoutCancel(ctx), s.now()); err != nil {
			return fmt.Errorf("touch last run: %w", asStoreUnavailable(err))
		}
	}
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]entity.Candidate, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "announce.fetch")
	defer span.End()

	candidates, err := s.Source.Fetch(ctx)
	if err != nil {
		tracing.Fail(span, err, "fetch failed")
		if !errors.Is(err, entity.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", entity.ErrFetchFailed, err)
		}
		return nil, fmt.Errorf("fetch from %s: %w", s.Source.Name(), err)
	}

	metrics.RecordCandidatesFetched(s.Source.Name(), len(candidates))
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

func (s *Service) selectEligible(ctx context.Context, candidates []entity.Candidate, now time.Time) (selection.Result, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "announce.select")
	defer span.End()

	res, err := selection.Select(ctx, candidates, s.Ledger, s.windowDays(), now)
	if err != nil {
		tracing.Fail(span, err, "select failed")
		return selection.Result{}, err
	}

	metrics.RecordSelection(len(res.Eligible), len(res.Suppressed))
	return res, nil
}

// announce formats, publishes and records one candidate. Only a record failure is returned.
func (s *Service) announce(ctx context.Context, logger *slog.Logger, c entity.Candidate, stats *RunStats) error {
	publisher := s.Publisher.Name()
	itemLogger := logger.With(slog.String("identity", c.Identity))

	msg, err := post.Format(c)
	if err != nil {
		stats.Invalid++
		metrics.RecordPost(publisher, "invalid")
		itemLogger.Warn("invalid candidate skipped", slog.Any("error", err))
		return nil
	}

	if s.Config.DryRun {
		stats.Published++
		metrics.RecordPost(publisher, "dry_run")
		itemLogger.Info("dry run, post not published", slog.String("message", msg))
		return nil
	}

	if err := s.publish(ctx, c.Identity, msg); err != nil {
		stats.PublishFailed++
		metrics.RecordPost(publisher, "failed")
		itemLogger.Warn("publish failed, candidate left unrecorded",
			slog.String("publisher", publisher),
			slog.String("error", logging.SanitizeError(err)))
		return nil
	}

	// The post is out; the record must not be lost to a cancelled run.
	if err := s.Ledger.Record(context.WithoutCancel(ctx), c.Identity, s.now()); err != nil {
		return fmt.Errorf("record %q: %w", c.Identity, asStoreUnavailable(err))
	}

	stats.Published++
	metrics.RecordPost(publisher, "published")
	itemLogger.Info("candidate announced", slog.String("publisher", publisher))
	return nil
}

func (s *Service) publish(ctx context.Context, identity, msg string) error {
	ctx, span := tracing.GetTracer().Start(ctx, "announce.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("identity", identity),
		attribute.String("publisher", s.Publisher.Name()),
	)

	start := time.Now()
	err := s.Publisher.Publish(ctx, msg)
	metrics.RecordPublishDuration(s.Publisher.Name(), time.Since(start))
	if err != nil {
		tracing.Fail(span, err, "publish failed")
	}
	return err
}

func (s *Service) prune(ctx context.Context, logger *slog.Logger, now time.Time, stats *RunStats) error {
	days := s.Config.PruneAfterDays
	if days <= 0 {
		return nil
	}
	// Entries inside the window still decide suppression.
	if days < s.windowDays() {
		days = s.windowDays()
	}

	cutoff := now.Add(-entity.WindowDuration(days))
	n, err := s.Ledger.PruneOlderThan(context.WithoutCancel(ctx), cutoff)
	if err != nil {
		return fmt.Errorf("prune ledger: %w", asStoreUnavailable(err))
	}
	stats.Pruned = n
	metrics.RecordPruned(n)
	if n > 0 {
		logger.Info("ledger pruned",
			slog.Int64("removed", n),
			slog.Time("cutoff", cutoff))
	}
	return nil
}

func asStoreUnavailable(err error) error {
	if errors.Is(err, entity.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}
