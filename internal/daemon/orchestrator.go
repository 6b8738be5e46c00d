package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/datememo/datememo/internal/auth"
	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/observability"
	"github.com/datememo/datememo/internal/person"
	"github.com/datememo/datememo/internal/reconcile"
	"github.com/datememo/datememo/internal/remote"
)

// LocalStore is the local store as the orchestrator uses it. *local.Store satisfies it.
type LocalStore interface {
	GetAll() []person.Person
	Add(profile person.Profile) (person.Person, error)
	Update(id string, patch person.Patch) (person.Person, error)
	Delete(id string) (bool, error)
	ReplaceAll(persons []person.Person) error
}

// RemoteStore is the remote store as the orchestrator uses it. *remote.Store satisfies it.
type RemoteStore interface {
	reconcile.Remote
	AddOne(ctx context.Context, p person.Person, userID string) error
	UpdateOne(ctx context.Context, p person.Person, userID string) error
	DeleteOne(ctx context.Context, id, userID string) error
	HasAny(ctx context.Context, userID string) bool
}

// Trigger names what started a refresh.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerInterval Trigger = "interval"
	TriggerFocus    Trigger = "focus"
)

// Config holds configuration for the orchestrator.
type Config struct {
	// RefreshInterval is how often Run refreshes in cloud mode.
	RefreshInterval time.Duration

	// DebounceInterval is how long focus signals must settle before a refresh.
	// This batches bursts of file events together.
	DebounceInterval time.Duration

	// WatchPath is the local store file to watch for writes by other processes.
	// Empty disables file watching.
	WatchPath string

	// Strategy is how RequestSync writes the merged set back.
	Strategy reconcile.Strategy

	// Publisher receives change notifications and notices.
	Publisher notify.Publisher

	// Logger for orchestrator activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:  5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Strategy:         reconcile.StrategyReplace,
		Publisher:        notify.Nop{},
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Orchestrator owns the session and routes every operation to the right stores.
// It is safe for concurrent use.
type Orchestrator struct {
	local    LocalStore
	remote   RemoteStore
	identity auth.Identity
	modes    ModeStore
	engine   *reconcile.Engine
	config   *Config

	mu      sync.Mutex
	session Session

	refreshes singleflight.Group
	focusCh   chan struct{}

	// pendingMu serializes read-modify-write of the persisted pending set.
	pendingMu sync.Mutex
}

// New creates an Orchestrator. The session starts signed out in local mode; call
// Login to pick up the current user.
func New(local LocalStore, rem RemoteStore, identity auth.Identity, modes ModeStore, config *Config) (*Orchestrator, error) {
	if local == nil {
		return nil, fmt.Errorf("local store cannot be nil")
	}
	if rem == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity cannot be nil")
	}
	if modes == nil {
		return nil, fmt.Errorf("mode store cannot be nil")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = defaults.RefreshInterval
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.Strategy == "" {
		config.Strategy = defaults.Strategy
	}
	if config.Publisher == nil {
		config.Publisher = defaults.Publisher
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	o := &Orchestrator{
		local:    local,
		remote:   rem,
		identity: identity,
		modes:    modes,
		config:   config,
		session:  Session{Mode: ModeLocal},
		focusCh:  make(chan struct{}, 1),
	}
	o.engine = reconcile.NewEngine(local, rem,
		reconcile.WithStrategy(config.Strategy),
		reconcile.WithLogger(log.New(config.Logger.Writer(), "[reconcile] ", config.Logger.Flags())),
	)

	if stored, ok := modes.Get(modePref); ok {
		if m, err := ParseMode(stored); err == nil {
			o.session.Mode = m
			o.session.ModeSet = true
		}
	}
	return o, nil
}

// Session returns a copy of the current session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Engine returns the reconciliation engine.
func (o *Orchestrator) Engine() *reconcile.Engine { return o.engine }

// Login signs the current user in and decides what to do with existing data.
//
// With no user the session stays local. With a stored cloud mode the remote
// collection is fetched and adopted, keeping records whose mirror is still
// pending; if that initial fetch fails the mode falls back to local and the
// error is returned. With no stored mode the returned Decision says which
// question, if any, to ask the user.
func (o *Orchestrator) Login(ctx context.Context) (Decision, error) {
	sess, err := o.signIn(ctx)
	if err != nil || !sess.SignedIn() {
		return DecisionNone, err
	}
	o.config.Logger.Printf("Signed in as %s (mode=%s)", sess.UserID, sess.Mode)

	if !sess.ModeSet {
		return o.decide(ctx, sess.UserID), nil
	}
	if sess.Mode != ModeCloud {
		return DecisionNone, nil
	}
	if err := o.pull(ctx, sess.UserID, true); err != nil {
		o.notice("Could not load cloud data, switched to local mode: " + err.Error())
		if serr := o.setMode(ModeLocal); serr != nil {
			o.config.Logger.Printf("Error persisting mode: %v", serr)
		}
		return DecisionNone, fmt.Errorf("initial fetch failed, using local mode: %w", err)
	}
	return DecisionNone, nil
}

// Resume picks up the current user for an already established session. Unlike
// Login it never changes the mode: in cloud mode it runs a Refresh and returns
// its error, if any, as a warning. With no stored mode it returns the same
// Decision as Login.
func (o *Orchestrator) Resume(ctx context.Context) (Decision, error) {
	sess, err := o.signIn(ctx)
	if err != nil || !sess.SignedIn() {
		return DecisionNone, err
	}
	if !sess.ModeSet {
		return o.decide(ctx, sess.UserID), nil
	}
	return DecisionNone, o.Refresh(ctx, TriggerManual)
}

// signIn reads the identity into the session.
func (o *Orchestrator) signIn(ctx context.Context) (Session, error) {
	u, err := o.identity.CurrentUser(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read current user: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if u == nil {
		o.session.UserID, o.session.Email = "", ""
		o.session.Mode = ModeLocal
		return o.session, nil
	}
	o.session.UserID, o.session.Email = u.ID, u.Email
	return o.session, nil
}

func (o *Orchestrator) decide(ctx context.Context, userID string) Decision {
	if o.remote.HasAny(ctx, userID) {
		return DecisionAdoptCloud
	}
	if len(o.local.GetAll()) > 0 {
		return DecisionPushLocal
	}
	return DecisionNone
}

// AdoptCloud replaces the local collection with the remote one and switches to
// cloud mode.
func (o *Orchestrator) AdoptCloud(ctx context.Context) error {
	userID, err := o.requireUser()
	if err != nil {
		return err
	}
	if err := o.pull(ctx, userID, false); err != nil {
		o.notice("Could not load cloud data: " + err.Error())
		return err
	}
	o.resetPending()
	return o.setMode(ModeCloud)
}

// PushLocal uploads the local collection to the remote and switches to cloud mode.
func (o *Orchestrator) PushLocal(ctx context.Context) (*reconcile.MigrateResult, error) {
	userID, err := o.requireUser()
	if err != nil {
		return nil, err
	}
	res, err := o.engine.Migrate(ctx, userID)
	if err != nil {
		o.notice(remote.Describe(err, "").Message)
		return nil, err
	}
	o.resetPending()
	if err := o.setMode(ModeCloud); err != nil {
		return res, err
	}
	return res, nil
}

// Logout forgets the user and returns to local mode. The stored mode is cleared
// so the next login asks again.
func (o *Orchestrator) Logout() error {
	o.mu.Lock()
	o.session = Session{Mode: ModeLocal}
	o.mu.Unlock()

	if err := o.modes.Unset(modePref); err != nil {
		return fmt.Errorf("failed to clear mode: %w", err)
	}
	o.resetPending()
	o.config.Publisher.Publish(notify.Event{Kind: notify.KindModeChanged, Message: string(ModeLocal)})
	o.config.Logger.Println("Signed out")
	return nil
}

// SetMode switches the mode explicitly. Cloud mode requires a user.
func (o *Orchestrator) SetMode(m Mode) error {
	if m == ModeCloud {
		if _, err := o.requireUser(); err != nil {
			return err
		}
	}
	return o.setMode(m)
}

// RequestSync runs a full reconciliation, adopts the merged collection locally
// and switches to cloud mode. It works in either mode but needs a user.
func (o *Orchestrator) RequestSync(ctx context.Context) (*reconcile.Report, error) {
	userID, err := o.requireUser()
	if err != nil {
		observability.SyncTotal.WithLabelValues("no_user").Inc()
		return nil, err
	}

	// Writes that fail to mirror while this runs stay pending.
	pending := o.Pending()

	report, err := o.engine.Reconcile(ctx, userID)
	if err != nil {
		observability.SyncTotal.WithLabelValues(syncResult(err)).Inc()
		msg := "Sync failed: " + err.Error()
		if reconcile.IsRemoteDegraded(err) {
			msg = "Sync failed after clearing cloud data; your local data is intact. Run sync again to restore the cloud copy."
		}
		o.notice(msg)
		return report, err
	}

	observability.SyncTotal.WithLabelValues("ok").Inc()
	observability.SyncConflicts.Add(float64(len(report.Conflicts)))
	observability.SyncDuration.Observe(report.Duration.Seconds())

	if err := o.local.ReplaceAll(report.Merged); err != nil {
		return report, fmt.Errorf("failed to save merged data locally: %w", err)
	}
	observability.LocalPersons.Set(float64(len(report.Merged)))
	o.clearPending(pending...)

	if err := o.setMode(ModeCloud); err != nil {
		return report, err
	}
	o.config.Publisher.Publish(notify.Event{
		Kind:    notify.KindSyncComplete,
		Count:   len(report.Merged),
		Message: report.Summary(),
	})
	return report, nil
}

func syncResult(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrFetch):
		return string(reconcile.PhaseFetch)
	case errors.Is(err, reconcile.ErrDelete):
		return string(reconcile.PhaseDelete)
	default:
		return string(reconcile.PhaseReinsert)
	}
}

// Refresh re-fetches the remote collection and adopts it locally. It does nothing
// outside cloud mode. Calls that overlap an in-flight refresh wait for it and get
// its result instead of fetching again.
func (o *Orchestrator) Refresh(ctx context.Context, trigger Trigger) error {
	sess := o.Session()
	if !sess.Cloud() {
		return nil
	}

	_, err, shared := o.refreshes.Do("refresh", func() (any, error) {
		return nil, o.pull(ctx, sess.UserID, true)
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	if shared {
		result += "_shared"
	}
	observability.RefreshTotal.WithLabelValues(string(trigger), result).Inc()

	if err != nil && !shared {
		o.notice("Could not refresh cloud data: " + err.Error())
	}
	return err
}

// Focus signals that the user returned; Run refreshes once the signals settle.
func (o *Orchestrator) Focus() {
	select {
	case o.focusCh <- struct{}{}:
	default:
	}
}

// Add stores a new person locally and, in cloud mode, mirrors it.
func (o *Orchestrator) Add(ctx context.Context, profile person.Profile) (person.Person, error) {
	p, err := o.local.Add(profile)
	if err != nil {
		return p, err
	}
	return p, o.mirror(ctx, "add", p.ID, func(userID string) error {
		return o.remote.AddOne(ctx, p, userID)
	})
}

// Update patches a person locally and, in cloud mode, mirrors it.
func (o *Orchestrator) Update(ctx context.Context, id string, patch person.Patch) (person.Person, error) {
	p, err := o.local.Update(id, patch)
	if err != nil {
		return p, err
	}
	return p, o.mirror(ctx, "update", p.ID, func(userID string) error {
		return o.remote.UpdateOne(ctx, p, userID)
	})
}

// Delete removes a person locally and, in cloud mode, from the remote.
func (o *Orchestrator) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := o.local.Delete(id)
	if err != nil {
		return removed, err
	}
	return removed, o.mirror(ctx, "delete", id, func(userID string) error {
		return o.remote.DeleteOne(ctx, id, userID)
	})
}

// ReplaceLocal replaces the local collection, for example from a backup. In cloud
// mode every id that was added, changed or removed becomes pending, so it survives
// refreshes until the next RequestSync writes it to the remote.
func (o *Orchestrator) ReplaceLocal(persons []person.Person) error {
	before := make(map[string]person.Person)
	for _, p := range o.local.GetAll() {
		before[p.ID] = p
	}

	var changed []string
	for _, p := range persons {
		old, ok := before[p.ID]
		if !ok || !old.UpdatedAt.Equal(p.UpdatedAt) {
			changed = append(changed, p.ID)
		}
		delete(before, p.ID)
	}
	for id := range before {
		changed = append(changed, id)
	}

	if o.Session().Cloud() {
		o.markPending(changed...)
	}
	if err := o.local.ReplaceAll(persons); err != nil {
		return err
	}
	observability.LocalPersons.Set(float64(len(persons)))
	return nil
}

// mirror runs fn in cloud mode and turns its failure into a notice and a *MirrorError.
// id stays pending until fn succeeds, so a refresh meanwhile keeps the local write.
func (o *Orchestrator) mirror(ctx context.Context, op, id string, fn func(userID string) error) error {
	sess := o.Session()
	if !sess.Cloud() {
		return nil
	}
	o.markPending(id)
	if err := fn(sess.UserID); err != nil {
		observability.MirrorFailures.WithLabelValues(op).Inc()
		me := &MirrorError{Op: op, PersonID: id, Err: err}
		o.config.Logger.Printf("Warning: %v", me)
		o.config.Publisher.Publish(notify.Event{
			Kind:     notify.KindRemoteFailed,
			PersonID: id,
			Message:  remote.Describe(err, "").Message,
		})
		return me
	}
	o.clearPending(id)
	return nil
}

// pull fetches the remote collection and adopts it locally. With keep set, ids
// still pending a mirror keep their local state.
func (o *Orchestrator) pull(ctx context.Context, userID string, keep bool) error {
	data, err := o.remote.FetchAll(ctx, userID)
	if err != nil {
		return err
	}
	if keep {
		o.pendingMu.Lock()
		data = keepPending(data, o.local.GetAll(), o.loadPending())
		o.pendingMu.Unlock()
	}
	if err := o.local.ReplaceAll(data); err != nil {
		return fmt.Errorf("failed to save cloud data locally: %w", err)
	}
	observability.LocalPersons.Set(float64(len(data)))
	return nil
}

func (o *Orchestrator) requireUser() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.UserID == "" {
		return "", ErrNoUser
	}
	return o.session.UserID, nil
}

func (o *Orchestrator) setMode(m Mode) error {
	o.mu.Lock()
	changed := o.session.Mode != m || !o.session.ModeSet
	o.session.Mode = m
	o.session.ModeSet = true
	o.mu.Unlock()

	if err := o.modes.Set(modePref, string(m)); err != nil {
		return fmt.Errorf("failed to persist mode: %w", err)
	}
	if changed {
		o.config.Logger.Printf("Mode set to %s", m)
		o.config.Publisher.Publish(notify.Event{Kind: notify.KindModeChanged, Message: string(m)})
	}
	return nil
}

func (o *Orchestrator) notice(msg string) {
	o.config.Logger.Printf("Warning: %s", msg)
	o.config.Publisher.Publish(notify.Event{Kind: notify.KindRemoteFailed, Message: msg})
}
