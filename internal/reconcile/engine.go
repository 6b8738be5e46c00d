package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/datememo/datememo/internal/person"
)

// Strategy selects how the merged set is written back to the remote.
type Strategy string

const (
	// StrategyReplace deletes the user's remote rows, then inserts the merged set.
	StrategyReplace Strategy = "replace"

	// StrategyDiff upserts the merged set, then deletes rows not in it.
	StrategyDiff Strategy = "diff"
)

// ParseStrategy maps a config value to a Strategy. Empty means StrategyReplace.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyReplace:
		return StrategyReplace, nil
	case StrategyDiff:
		return StrategyDiff, nil
	default:
		return "", fmt.Errorf("unknown sync strategy %q (want replace or diff)", s)
	}
}

// LocalReader is the part of the local store the engine reads.
type LocalReader interface {
	GetAll() []person.Person
}

// Remote is the part of the remote store the engine writes.
type Remote interface {
	FetchAll(ctx context.Context, userID string) ([]person.Person, error)
	DeleteAll(ctx context.Context, userID string) error
	InsertAll(ctx context.Context, persons []person.Person, userID string) error
	UpsertAll(ctx context.Context, persons []person.Person, userID string) error
	DeleteExcept(ctx context.Context, userID string, keepIDs []string) error
}

// Report describes a reconciliation.
type Report struct {
	Merged     []person.Person
	Conflicts  []Conflict
	LocalOnly  []string
	RemoteOnly []string
	Strategy   Strategy
	Duration   time.Duration

	// RemoteEmptied is set when a replace deleted the remote rows but could not
	// reinsert them.
	RemoteEmptied bool
}

// Summary returns a one-line description.
func (r *Report) Summary() string {
	return fmt.Sprintf("Merged %d persons (%d local only, %d remote only, %d conflicts)",
		len(r.Merged), len(r.LocalOnly), len(r.RemoteOnly), len(r.Conflicts))
}

// MigrateResult describes a push of local data to the remote.
type MigrateResult struct {
	Count   int
	Message string
}

// Engine reconciles one user's local and remote collections.
type Engine struct {
	local    LocalReader
	remote   Remote
	strategy Strategy
	logger   *log.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy sets the write-back strategy. The default is StrategyReplace.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
//
// If no logger is given, a default logger writing to stderr is used.
func NewEngine(local LocalReader, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		local:    local,
		remote:   remote,
		strategy: StrategyReplace,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Reconcile fetches the remote collection, merges it with the local one and
// writes the result back to the remote. The local store is not modified.
//
// On a fetch failure nothing is written and the report is nil. Later failures
// return the report built so far along with a *PhaseError.
func (e *Engine) Reconcile(ctx context.Context, userID string) (*Report, error) {
	start := e.now()

	remoteData, err := e.remote.FetchAll(ctx, userID)
	if err != nil {
		e.logger.Printf("WARNING: reconcile aborted, fetch failed: %v", err)
		return nil, &PhaseError{Phase: PhaseFetch, Strategy: e.strategy, Err: err}
	}

	localData := e.local.GetAll()
	merged, conflicts := Merge(localData, remoteData)
	localOnly, remoteOnly := partition(localData, remoteData)

	report := &Report{
		Merged:     merged,
		Conflicts:  conflicts,
		LocalOnly:  localOnly,
		RemoteOnly: remoteOnly,
		Strategy:   e.strategy,
	}
	for _, c := range conflicts {
		e.logger.Printf("Conflict on %s: kept %s version (local %s, remote %s)",
			c.ID, c.Winner, c.LocalUpdatedAt.Format(time.RFC3339), c.RemoteUpdatedAt.Format(time.RFC3339))
	}

	var werr *PhaseError
	switch e.strategy {
	case StrategyDiff:
		werr = e.writeDiff(ctx, merged, userID)
	default:
		werr = e.writeReplace(ctx, merged, userID)
	}
	report.Duration = e.now().Sub(start)

	if werr != nil {
		report.RemoteEmptied = werr.RemoteEmptied
		e.logger.Printf("ERROR: reconcile %s phase failed: %v", werr.Phase, werr.Err)
		return report, werr
	}

	e.logger.Printf("%s in %v", report.Summary(), report.Duration)
	return report, nil
}

func (e *Engine) writeReplace(ctx context.Context, merged []person.Person, userID string) *PhaseError {
	if err := e.remote.DeleteAll(ctx, userID); err != nil {
		return &PhaseError{Phase: PhaseDelete, Strategy: StrategyReplace, Err: err}
	}
	if err := e.remote.InsertAll(ctx, merged, userID); err != nil {
		return &PhaseError{
			Phase:         PhaseReinsert,
			Strategy:      StrategyReplace,
			RemoteEmptied: len(merged) > 0,
			Err:           err,
		}
	}
	return nil
}

func (e *Engine) writeDiff(ctx context.Context, merged []person.Person, userID string) *PhaseError {
	if err := e.remote.UpsertAll(ctx, merged, userID); err != nil {
		return &PhaseError{Phase: PhaseReinsert, Strategy: StrategyDiff, Err: err}
	}
	keep := make([]string, len(merged))
	for i, p := range merged {
		keep[i] = p.ID
	}
	if err := e.remote.DeleteExcept(ctx, userID, keep); err != nil {
		return &PhaseError{Phase: PhaseDelete, Strategy: StrategyDiff, Err: err}
	}
	return nil
}

// Migrate pushes every local record to the remote for userID. It is meant for a
// remote that holds nothing for the user yet.
func (e *Engine) Migrate(ctx context.Context, userID string) (*MigrateResult, error) {
	localData := e.local.GetAll()
	if len(localData) == 0 {
		return &MigrateResult{Message: "No local data to migrate"}, nil
	}

	e.logger.Printf("Migrating %d local persons to remote", len(localData))
	if err := e.remote.InsertAll(ctx, localData, userID); err != nil {
		return nil, fmt.Errorf("failed to migrate local data: %w", err)
	}
	return &MigrateResult{
		Count:   len(localData),
		Message: fmt.Sprintf("Migrated %d persons to the cloud", len(localData)),
	}, nil
}
