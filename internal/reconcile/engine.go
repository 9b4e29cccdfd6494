// AngelaMos | 2026
// engine.go

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/mirror"
	"github.com/carterperez-dev/roadwatch/internal/notify"
	"github.com/carterperez-dev/roadwatch/internal/signalement"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultPushTimeout  = 10 * time.Second
)

// Users resolves the owner id carried by mirror documents.
type Users interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

// Engine moves signalements between the relational store and the mirror.
// Both batch directions are idempotent: export merges into existing
// documents, import only picks documents not yet marked as imported.
type Engine struct {
	repo         signalement.Repository
	mirror       mirror.Mirror
	users        Users
	checkpoints  Checkpointer
	publisher    notify.Publisher
	tracer       trace.Tracer
	logger       *slog.Logger
	collection   string
	probeTimeout time.Duration
	pushTimeout  time.Duration
	now          func() time.Time
	inflight     sync.WaitGroup
	pushes       idLocks
}

type Config struct {
	Repo         signalement.Repository
	Mirror       mirror.Mirror
	Users        Users
	Checkpoints  Checkpointer
	Publisher    notify.Publisher
	Tracer       trace.Tracer
	Logger       *slog.Logger
	Collection   string
	ProbeTimeout time.Duration
	PushTimeout  time.Duration
	Now          func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		repo:         cfg.Repo,
		mirror:       cfg.Mirror,
		users:        cfg.Users,
		checkpoints:  cfg.Checkpoints,
		publisher:    cfg.Publisher,
		tracer:       cfg.Tracer,
		logger:       cfg.Logger,
		collection:   cfg.Collection,
		probeTimeout: cfg.ProbeTimeout,
		pushTimeout:  cfg.PushTimeout,
		now:          cfg.Now,
	}

	if e.checkpoints == nil {
		e.checkpoints = NewMemoryCheckpoints()
	}
	if e.publisher == nil {
		e.publisher = notify.Noop{}
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("roadwatch/reconcile")
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.collection == "" {
		e.collection = mirror.Collection
	}
	if e.probeTimeout <= 0 {
		e.probeTimeout = defaultProbeTimeout
	}
	if e.pushTimeout <= 0 {
		e.pushTimeout = defaultPushTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

type Options struct {
	// Resume skips ids up to and including the stored checkpoint.
	Resume bool
}

type ExportResult struct {
	Exported  int    `json:"exportedCount"`
	Failed    int    `json:"failedCount"`
	Skipped   int    `json:"skippedCount"`
	Total     int    `json:"total"`
	Available bool   `json:"available"`
	Completed bool   `json:"completed"`
	LastID    string `json:"lastId,omitempty"`
}

type ImportResult struct {
	Imported        int    `json:"importedCount"`
	Errors          int    `json:"errorCount"`
	Skipped         int    `json:"skippedCount"`
	Stale           int    `json:"staleCount"`
	Warnings        int    `json:"warningCount"`
	TotalUnimported int    `json:"totalUnimported"`
	Available       bool   `json:"available"`
	Completed       bool   `json:"completed"`
	LastID          string `json:"lastId,omitempty"`
}

// Available probes the mirror, giving up after the probe timeout.
func (e *Engine) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()
	return e.mirror.IsReachable(probeCtx)
}

// Export pushes every relational signalement to the mirror with merge
// semantics. A failing record is logged and counted; an unreachable mirror
// ends the batch with Available=false and the checkpoint left in place.
func (e *Engine) Export(ctx context.Context, opts Options) (ExportResult, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.export")
	defer span.End()

	var result ExportResult
	if !e.Available(ctx) {
		e.logger.WarnContext(ctx, "mirror unavailable, export skipped")
		return result, nil
	}
	result.Available = true

	rows, err := e.repo.FindAll(ctx)
	if err != nil {
		core.SetSpanError(ctx, err)
		return result, fmt.Errorf("export: load signalements: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	result.Total = len(rows)

	after, err := e.resumePoint(ctx, JobExport, opts)
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("export cancelled after %q: %w", result.LastID, err)
		}

		if after != "" && row.ID <= after {
			result.Skipped++
			continue
		}

		if err := e.pushCurrent(ctx, row.ID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				result.Skipped++
				continue
			}
			if errors.Is(err, core.ErrUnavailable) {
				e.logger.WarnContext(ctx, "mirror went away during export",
					"last_id", result.LastID,
					"error", err,
				)
				result.Available = false
				return result, nil
			}
			result.Failed++
			core.AddSpanEvent(ctx, "export.failed",
				attribute.String("signalement.id", row.ID),
			)
			e.logger.ErrorContext(ctx, "export signalement failed",
				"signalement_id", row.ID,
				"error", err,
			)
		} else {
			result.Exported++
		}

		result.LastID = row.ID
		e.saveCheckpoint(ctx, JobExport, row.ID)
	}

	result.Completed = true
	e.clearCheckpoint(ctx, JobExport)

	span.SetAttributes(
		attribute.Int("reconcile.exported", result.Exported),
		attribute.Int("reconcile.failed", result.Failed),
	)
	e.logger.InfoContext(ctx, "export finished",
		"exported", result.Exported,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"total", result.Total,
	)

	return result, nil
}

// Import pulls every mirror document that has not been imported yet into
// the relational store. Incoming null fields never erase stored values,
// the incoming status goes through the workflow, and the document is
// marked as imported in a write separate from the relational upsert.
func (e *Engine) Import(ctx context.Context, opts Options) (ImportResult, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.import")
	defer span.End()

	var result ImportResult
	if !e.Available(ctx) {
		e.logger.WarnContext(ctx, "mirror unavailable, import skipped")
		return result, nil
	}
	result.Available = true

	candidates, err := e.candidates(ctx)
	if errors.Is(err, core.ErrUnavailable) {
		result.Available = false
		return result, nil
	}
	if err != nil {
		core.SetSpanError(ctx, err)
		return result, fmt.Errorf("import: query candidates: %w", err)
	}
	result.TotalUnimported = len(candidates)

	after, err := e.resumePoint(ctx, JobImport, opts)
	if err != nil {
		return result, err
	}

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import cancelled after %q: %w", result.LastID, err)
		}

		if after != "" && rec.ID <= after {
			result.Skipped++
			continue
		}

		warnings, err := e.importOne(ctx, rec)
		result.Warnings += warnings

		switch {
		case errors.Is(err, core.ErrUnavailable):
			e.logger.WarnContext(ctx, "mirror went away during import",
				"last_id", result.LastID,
				"error", err,
			)
			result.Available = false
			return result, nil
		case errors.Is(err, errStaleDocument):
			result.Stale++
		case err != nil:
			result.Errors++
			core.AddSpanEvent(ctx, "import.failed",
				attribute.String("signalement.id", rec.ID),
			)
			e.logger.ErrorContext(ctx, "import signalement failed",
				"signalement_id", rec.ID,
				"error", err,
			)
		default:
			result.Imported++
		}

		result.LastID = rec.ID
		e.saveCheckpoint(ctx, JobImport, rec.ID)
	}

	result.Completed = true
	e.clearCheckpoint(ctx, JobImport)

	span.SetAttributes(
		attribute.Int("reconcile.imported", result.Imported),
		attribute.Int("reconcile.errors", result.Errors),
	)
	e.logger.InfoContext(ctx, "import finished",
		"imported", result.Imported,
		"errors", result.Errors,
		"skipped", result.Skipped,
		"stale", result.Stale,
		"warnings", result.Warnings,
		"total_unimported", result.TotalUnimported,
	)

	return result, nil
}

// candidates returns documents flagged importedToSQL=false plus those with
// no flag at all, deduplicated and ordered by id.
func (e *Engine) candidates(ctx context.Context) ([]mirror.Record, error) {
	flagged, err := e.mirror.Query(ctx, e.collection,
		mirror.Equals(mirror.FieldImportedToSQL, false))
	if err != nil {
		return nil, err
	}

	unflagged, err := e.mirror.Query(ctx, e.collection,
		mirror.Missing(mirror.FieldImportedToSQL))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(flagged)+len(unflagged))
	out := make([]mirror.Record, 0, len(flagged)+len(unflagged))
	for _, rec := range append(flagged, unflagged...) {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}

	mirror.SortByID(out)
	return out, nil
}

func (e *Engine) importOne(ctx context.Context, rec mirror.Record) (int, error) {
	now := e.now()

	doc, warnings := mirror.DecodeDocument(rec, now)
	for _, w := range warnings {
		e.logger.WarnContext(ctx, "mirror field ignored",
			"signalement_id", rec.ID,
			"field", w.Field,
			"reason", w.Reason,
		)
	}

	if doc.ID == "" {
		return len(warnings), fmt.Errorf("document without id: %w", core.ErrInvalidInput)
	}

	patch := doc.Patch().Sanitize()
	if err := e.checkOwner(ctx, &patch); err != nil {
		return len(warnings), err
	}
	if err := patch.Validate(); err != nil {
		return len(warnings), fmt.Errorf("signalement %s: %w", doc.ID, err)
	}

	var status string
	if doc.Statut != nil && *doc.Statut != "" {
		norm, err := signalement.NormalizeStatus(*doc.Statut)
		if err != nil {
			return len(warnings), fmt.Errorf("signalement %s: %w", doc.ID, err)
		}
		status = norm
	}

	var from string
	stored, _, err := signalement.Upsert(ctx, e.repo, doc.ID,
		func(s *signalement.Signalement, created bool) error {
			if created {
				s.Statut = signalement.StatusNouveau
			} else if doc.Version != nil && *doc.Version < s.Version {
				return errStaleDocument
			}
			from = s.Statut

			s.ApplyPatch(patch)

			if created {
				if s.DateSignalement == nil {
					t := now
					s.DateSignalement = &t
				}
				stamp := *s.DateSignalement
				s.DateNouveau = &stamp
			}

			if status == "" {
				return nil
			}
			next, err := signalement.ApplyStatusChange(*s, status, now)
			if err != nil {
				return err
			}
			*s = next
			return nil
		})
	if errors.Is(err, errStaleDocument) {
		return len(warnings), e.replaceStale(ctx, rec.ID, doc, now)
	}
	if err != nil {
		return len(warnings), fmt.Errorf("upsert signalement %s: %w", doc.ID, err)
	}

	if from != stored.Statut {
		e.publishImportChange(ctx, stored, from, now)
	}

	if err := e.markImported(ctx, rec.ID, stored.Version, now); err != nil {
		return len(warnings), err
	}

	return len(warnings), nil
}

// replaceStale overwrites a document built from an older row version with
// the current row and marks it imported, leaving the relational side as is.
func (e *Engine) replaceStale(ctx context.Context, key string, doc mirror.Document, now time.Time) error {
	e.logger.WarnContext(ctx, "mirror document older than stored row, not imported",
		"signalement_id", doc.ID,
		"document_version", *doc.Version,
	)

	if err := e.pushCurrent(ctx, doc.ID); err != nil {
		return fmt.Errorf("refresh stale %s: %w", doc.ID, err)
	}

	current, err := e.repo.FindByID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("refresh stale %s: %w", doc.ID, err)
	}
	if err := e.markImported(ctx, key, current.Version, now); err != nil {
		return err
	}
	return fmt.Errorf("signalement %s: %w", doc.ID, errStaleDocument)
}

// markImported flags the document and records the row version it now
// matches, so later edits made on the mirror side compare as current.
func (e *Engine) markImported(ctx context.Context, key string, version int, now time.Time) error {
	mark := mirror.Fields{
		mirror.FieldImportedToSQL: true,
		mirror.FieldImportedAt:    now.UTC().Format(time.RFC3339Nano),
		mirror.FieldVersion:       version,
	}
	if err := e.mirror.Update(ctx, e.collection, key, mark); err != nil {
		return fmt.Errorf("mark %s imported: %w", key, err)
	}
	return nil
}

// checkOwner drops an owner id that does not resolve to a known user so the
// foreign key never blocks the rest of the record.
func (e *Engine) checkOwner(ctx context.Context, patch *signalement.Patch) error {
	if patch.UserID == nil || e.users == nil {
		return nil
	}

	_, err := e.users.FindByID(ctx, *patch.UserID)
	if errors.Is(err, core.ErrNotFound) {
		e.logger.WarnContext(ctx, "mirror owner unknown, ignoring",
			"user_id", *patch.UserID,
		)
		patch.UserID = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve owner %d: %w", *patch.UserID, err)
	}
	return nil
}

func (e *Engine) publishImportChange(
	ctx context.Context,
	s *signalement.Signalement,
	from string,
	now time.Time,
) {
	change := notify.StatusChange{
		SignalementID: s.ID,
		From:          from,
		To:            s.Statut,
		Avancement:    s.Avancement(),
		Source:        notify.SourceImport,
		ChangedAt:     now,
	}
	if err := e.publisher.PublishStatusChange(ctx, change); err != nil {
		e.logger.WarnContext(ctx, "status change notification failed",
			"signalement_id", s.ID,
			"error", err,
		)
	}
}

// Push writes one signalement to the mirror with merge semantics.
func (e *Engine) Push(ctx context.Context, s signalement.Signalement) error {
	ctx, span := e.tracer.Start(ctx, "reconcile.push",
		trace.WithAttributes(attribute.String("signalement.id", s.ID)))
	defer span.End()

	fields := mirror.EncodeDocument(s, e.now())
	if err := e.mirror.Set(ctx, e.collection, s.ID, fields, true); err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("push signalement %s: %w", s.ID, err)
	}
	return nil
}

// pushCurrent re-reads the row and pushes it while holding the id's push
// lock. Pushes of one id therefore reach the mirror in order and each
// carries the latest stored state.
func (e *Engine) pushCurrent(ctx context.Context, id string) error {
	unlock := e.pushes.lock(id)
	defer unlock()

	row, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("push signalement %s: %w", id, err)
	}
	return e.Push(ctx, *row)
}

// PushAsync pushes the current state of s in the background, detached from
// the caller's context. Failures are logged and never reach the caller.
func (e *Engine) PushAsync(s signalement.Signalement) {
	e.inflight.Add(1)

	go func() {
		defer e.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("mirror push panicked",
					"signalement_id", s.ID,
					"panic", r,
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.pushTimeout)
		defer cancel()

		err := e.pushCurrent(ctx, s.ID)
		if errors.Is(err, core.ErrNotFound) {
			e.logger.Debug("mirror push skipped, row gone",
				"signalement_id", s.ID,
			)
			return
		}
		if err != nil {
			e.logger.Warn("mirror push failed",
				"signalement_id", s.ID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until background pushes finish or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Status struct {
	Available        bool   `json:"available"`
	ExportCheckpoint string `json:"exportCheckpoint,omitempty"`
	ImportCheckpoint string `json:"importCheckpoint,omitempty"`
}

func (e *Engine) Status(ctx context.Context) Status {
	st := Status{Available: e.Available(ctx)}

	var err error
	if st.ExportCheckpoint, err = e.checkpoints.Load(ctx, JobExport); err != nil {
		e.logger.WarnContext(ctx, "load export checkpoint", "error", err)
	}
	if st.ImportCheckpoint, err = e.checkpoints.Load(ctx, JobImport); err != nil {
		e.logger.WarnContext(ctx, "load import checkpoint", "error", err)
	}

	return st
}

// Documents lists the raw mirror collection.
func (e *Engine) Documents(ctx context.Context) ([]mirror.Record, error) {
	if !e.Available(ctx) {
		return nil, fmt.Errorf("list mirror documents: %w", core.ErrUnavailable)
	}

	records, err := e.mirror.Query(ctx, e.collection, mirror.All())
	if err != nil {
		return nil, fmt.Errorf("list mirror documents: %w", err)
	}
	return records, nil
}

func (e *Engine) resumePoint(ctx context.Context, job string, opts Options) (string, error) {
	if !opts.Resume {
		return "", nil
	}
	after, err := e.checkpoints.Load(ctx, job)
	if err != nil {
		return "", fmt.Errorf("%s: %w", job, err)
	}
	if after != "" {
		e.logger.InfoContext(ctx, "resuming batch", "job", job, "after", after)
	}
	return after, nil
}

func (e *Engine) saveCheckpoint(ctx context.Context, job, id string) {
	if err := e.checkpoints.Save(ctx, job, id); err != nil {
		e.logger.WarnContext(ctx, "save checkpoint failed", "job", job, "error", err)
	}
}

func (e *Engine) clearCheckpoint(ctx context.Context, job string) {
	if err := e.checkpoints.Clear(ctx, job); err != nil {
		e.logger.WarnContext(ctx, "clear checkpoint failed", "job", job, "error", err)
	}
}

var _ signalement.Pusher = (*Engine)(nil)

var errStaleDocument = errors.New("mirror document older than stored row")

// idLocks hands out one mutex per id, dropped once nobody holds or waits
// on it.
type idLocks struct {
	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func (l *idLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*idLock)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &idLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Ping lets the readiness probe report mirror reachability.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.Available(ctx) {
		return fmt.Errorf("mirror ping: %w", core.ErrUnavailable)
	}
	return nil
}
