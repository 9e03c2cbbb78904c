package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/archive"
	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/lock"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/mapper"
	"github.com/dmitrijs2005/gymbridge/internal/metrics"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/syncstate"
	"github.com/dmitrijs2005/gymbridge/internal/timex"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// RunLockKey serializes sync runs across processes.
	RunLockKey = "padronsync:run"

	DefaultPerPage = 500

	defaultLookback = 24 * time.Hour
	maxErrorChain   = 10
	tracerName      = "github.com/dmitrijs2005/gymbridge/internal/services"
)

// State is a step of a sync run.
type State string

const (
	StateIdle              State = "idle"
	StateDeterminingCursor State = "determining_cursor"
	StateFetchingPage      State = "fetching_page"
	StateMapping           State = "mapping"
	StateUpserting         State = "upserting"
	StateCommittingCursor  State = "committing_cursor"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// PageFetcher is the registry side of a run.
type PageFetcher interface {
	FetchPage(ctx context.Context, since string, page, perPage int) (*registry.PageResult, error)
}

// BatchUpserter is the mirror side of a run.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, rows []models.MirrorRecord) (UpsertResult, error)
}

// Options tune one run. Since overrides the stored cursor. PerPage <= 0 uses
// the service default.
type Options struct {
	Since   string
	PerPage int
	// OnPage, when set, is called after each page is persisted.
	OnPage func(PageProgress)
}

type PageProgress struct {
	Page     int
	LastPage int
	Items    int
	Upserted int
}

type RunSummary struct {
	RunID     string
	Since     string
	Pages     int
	Processed int
	Upserted  int
	Skipped   int
	Cursor    string
	State     State
}

// SyncDeps are the collaborators of a SyncService. Locker, Archive and
// Metrics are optional.
type SyncDeps struct {
	Registry PageFetcher
	Mirror   BatchUpserter
	Cursor   syncstate.Store
	Locker   lock.Locker
	Archive  archive.Archiver
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Logger   logging.Logger
	Now      func() time.Time
	PerPage  int
}

// SyncService pulls the registry incrementally into the mirror and advances
// the cursor only when every page was persisted.
type SyncService struct {
	registry PageFetcher
	mirror   BatchUpserter
	cursor   syncstate.Store
	locker   lock.Locker
	archive  archive.Archiver
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   logging.Logger
	now      func() time.Time
	perPage  int
}

func NewSyncService(d SyncDeps) *SyncService {
	s := &SyncService{
		registry: d.Registry,
		mirror:   d.Mirror,
		cursor:   d.Cursor,
		locker:   d.Locker,
		archive:  d.Archive,
		metrics:  d.Metrics,
		tracer:   d.Tracer,
		logger:   d.Logger.With("module", "sync"),
		now:      d.Now,
		perPage:  d.PerPage,
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.perPage <= 0 {
		s.perPage = DefaultPerPage
	}
	return s
}

// run carries the mutable state of one Run call.
type run struct {
	*RunSummary
	logger logging.Logger
	page   int
}

func (r *run) enter(ctx context.Context, st State) {
	r.State = st
	r.logger.Debug(ctx, "sync state", "state", string(st), "page", r.page)
}

// Run executes one sync. On error nothing past the last persisted page is
// committed and the summary reports StateFailed.
func (s *SyncService) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	runID := uuid.NewString()
	r := &run{
		RunSummary: &RunSummary{RunID: runID, State: StateIdle},
		logger:     s.logger.With("run_id", runID),
	}
	started := s.now()

	ctx, span := s.tracer.Start(ctx, "padronsync.run", trace.WithAttributes(attribute.String("padronsync.run_id", runID)))
	defer span.End()

	err := s.locked(ctx, r, func() error { return s.execute(ctx, r, opts) })
	elapsed := s.now().Sub(started).Seconds()

	if err != nil {
		failedIn := r.State
		r.State = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error(ctx, "sync failed",
			"state", string(failedIn),
			"page", r.page,
			"error", err.Error(),
			"causes", errorChain(err, maxErrorChain),
		)
		if s.metrics != nil {
			outcome := metrics.OutcomeFailure
			if errors.Is(err, ErrRunInProgress) {
				outcome = metrics.OutcomeLockHeld
			}
			s.metrics.RecordRun(outcome, elapsed)
		}
		return r.RunSummary, err
	}

	if s.metrics != nil {
		s.metrics.RecordRun(metrics.OutcomeSuccess, elapsed)
	}
	r.logger.Info(ctx, "sync completed",
		"since", r.Since,
		"pages", r.Pages,
		"processed", r.Processed,
		"upserted", r.Upserted,
		"skipped", r.Skipped,
		"cursor", r.Cursor,
	)
	return r.RunSummary, nil
}

func (s *SyncService) locked(ctx context.Context, r *run, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	release, err := s.locker.Acquire(ctx, RunLockKey)
	if errors.Is(err, lock.ErrHeld) {
		return ErrRunInProgress
	}
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn(ctx, "run lock release failed", "error", err)
		}
	}()

	return fn()
}

func (s *SyncService) execute(ctx context.Context, r *run, opts Options) error {
	r.enter(ctx, StateDeterminingCursor)
	since, err := s.determineCursor(ctx, r, opts.Since)
	if err != nil {
		return err
	}
	r.Since = since

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = s.perPage
	}
	r.logger.Info(ctx, "sync started", "since", since, "per_page", perPage)

	var last *registry.PageResult
	for r.page = 1; ; r.page++ {
		res, done, err := s.processPage(ctx, r, since, perPage, opts.OnPage)
		if err != nil {
			return err
		}
		last = res
		if done {
			break
		}
	}

	r.enter(ctx, StateCommittingCursor)
	cursor := s.nextCursor(ctx, r, last)
	if err := s.cursor.Set(ctx, common.LastSyncKey, cursor); err != nil {
		return fmt.Errorf("commit cursor: %w", err)
	}
	r.Cursor = cursor
	if s.metrics != nil {
		if t, err := timex.Parse(cursor); err == nil {
			s.metrics.SetCursor(t.Unix())
		}
	}

	r.enter(ctx, StateDone)
	return nil
}

// determineCursor picks override, then stored cursor, then now-24h.
func (s *SyncService) determineCursor(ctx context.Context, r *run, override string) (string, error) {
	if override != "" {
		since, err := timex.NormalizeWire(override)
		if err != nil {
			return "", fmt.Errorf("since override %q: %w", override, err)
		}
		return since, nil
	}

	stored, err := s.cursor.Get(ctx, common.LastSyncKey)
	switch {
	case err == nil:
		since, perr := timex.NormalizeWire(stored)
		if perr == nil {
			return since, nil
		}
		r.logger.Warn(ctx, "stored cursor unparseable, using lookback", "value", stored, "error", perr)
	case errors.Is(err, common.ErrorNotFound):
	default:
		return "", fmt.Errorf("read cursor: %w", err)
	}

	return timex.ToWire(s.now().Add(-defaultLookback)), nil
}

// processPage fetches, archives, maps and persists one page. done reports
// that no further page should be requested.
func (s *SyncService) processPage(ctx context.Context, r *run, since string, perPage int, onPage func(PageProgress)) (*registry.PageResult, bool, error) {
	ctx, span := s.tracer.Start(ctx, "padronsync.page", trace.WithAttributes(attribute.Int("padronsync.page", r.page)))
	defer span.End()

	r.enter(ctx, StateFetchingPage)
	res, err := s.registry.FetchPage(ctx, since, r.page, perPage)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("fetch page %d: %w", r.page, err)
	}
	r.Pages++
	s.archivePage(ctx, r, res.Body)

	if !res.HasData {
		r.logger.Warn(ctx, "registry page without data array, stopping", "page", r.page)
		return res, true, nil
	}

	r.enter(ctx, StateMapping)
	rows := mapper.MapPage(res.Data)

	r.enter(ctx, StateUpserting)
	up, err := s.mirror.UpsertBatch(ctx, rows)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("persist page %d: %w", r.page, err)
	}

	upserted := up.BySecondaryID + up.ByNationalID
	r.Processed += len(rows)
	r.Upserted += upserted
	r.Skipped += up.Skipped
	span.SetAttributes(attribute.Int("padronsync.items", len(rows)), attribute.Int("padronsync.upserted", upserted))

	if s.metrics != nil {
		s.metrics.RecordPage(len(rows))
		s.metrics.RecordUpsert(up.BySecondaryID, up.ByNationalID, up.Skipped)
	}

	current := res.Pagination.CurrentPage
	if current == 0 {
		current = r.page
	}
	lastPage := res.Pagination.LastPage
	if lastPage == 0 {
		lastPage = r.page
	}

	if onPage != nil {
		onPage(PageProgress{Page: r.page, LastPage: lastPage, Items: len(rows), Upserted: upserted})
	}
	r.logger.Debug(ctx, "page persisted", "page", r.page, "last_page", lastPage, "items", len(rows), "upserted", upserted)

	// A registry stuck on the same current_page still ends once the requested
	// page reaches last_page.
	return res, max(current, r.page) >= lastPage, nil
}

func (s *SyncService) archivePage(ctx context.Context, r *run, body []byte) {
	if s.archive == nil || len(body) == 0 {
		return
	}
	if err := s.archive.PutPage(ctx, r.RunID, r.page, body); err != nil {
		r.logger.Warn(ctx, "page archive failed", "page", r.page, "error", err)
	}
}

// nextCursor is the server_time of the last page, else the local clock.
func (s *SyncService) nextCursor(ctx context.Context, r *run, last *registry.PageResult) string {
	if last != nil && last.ServerTime != "" {
		cursor, err := timex.NormalizeWire(last.ServerTime)
		if err == nil {
			return cursor
		}
		r.logger.Warn(ctx, "server_time unparseable, using local clock", "server_time", last.ServerTime, "error", err)
	}
	return timex.ToWire(s.now())
}
