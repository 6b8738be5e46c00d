package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/datememo/datememo/internal/auth"
	"github.com/datememo/datememo/internal/config"
	"github.com/datememo/datememo/internal/daemon"
	"github.com/datememo/datememo/internal/local"
	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/remote"
	"github.com/datememo/datememo/internal/ui"
)

// app wires the stores, the identity and the orchestrator for one command.
type app struct {
	cfg    *config.Config
	kv     local.KV
	local  *local.Store
	prefs  *local.Prefs
	remote *remote.Store
	orch   *daemon.Orchestrator
	broker *notify.Broker
	ident  auth.Identity
	logOut io.WriteCloser
	logs   io.Writer
}

// openApp loads configuration and opens every store. It does not sign in.
func openApp() (*app, error) {
	cfg, err := config.Load(homeFlag)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logs: io.Discard}
	if verboseFlag || cfg.Log.File != "" {
		a.logOut = cfg.LogWriter()
		a.logs = a.logOut
	}

	a.broker = notify.NewBroker(64, config.NewLogger(a.logs, "notify"))

	var watchPath string
	switch cfg.Store.Backend {
	case config.BackendBadger:
		bcfg := local.DefaultBadgerConfig(filepath.Join(cfg.StoreDir(), "badger"))
		if verboseFlag {
			bcfg.Logger = config.NewLogger(a.logs, "badger")
		}
		kv, err := local.OpenBadgerKV(bcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		a.kv = kv
	default:
		kv, err := local.OpenFileKV(cfg.StoreDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		a.kv = kv
		watchPath = kv.Path(local.DefaultKey)
	}

	a.local = local.New(a.kv,
		local.WithPublisher(a.broker),
		local.WithLogger(config.NewLogger(a.logs, "local")),
	)
	a.prefs = local.NewPrefs(a.kv)

	a.remote, err = remote.Open(cfg.RemoteConfig(config.NewLogger(a.logs, "remote")))
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.remote.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.remote.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), remote.Describe(err, "").Message)
		}
		cancel()
	}

	if cfg.Auth.UserID != "" {
		a.ident = auth.StaticIdentity{User: &auth.User{ID: cfg.Auth.UserID}}
	} else {
		a.ident = auth.NewTokenIdentity(cfg.TokenPath(), cfg.Auth.JWTSecret)
	}

	a.orch, err = daemon.New(a.local, a.remote, a.ident, a.prefs, &daemon.Config{
		RefreshInterval:  cfg.Sync.RefreshInterval,
		DebounceInterval: cfg.Sync.DebounceInterval,
		WatchPath:        watchPath,
		Strategy:         cfg.Strategy(),
		Publisher:        a.broker,
		Logger:           config.NewLogger(a.logs, "daemon"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// mustOpen opens the app and resumes the session, settling any open data
// decision. It does not repeat the first-login fetch or its fallback to local mode.
func mustOpen(ctx context.Context) *app {
	a, err := openApp()
	if err != nil {
		fail("%v", err)
	}
	decision, err := a.orch.Resume(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), remote.Describe(err, "").Message)
	}
	if err := a.settle(ctx, decision); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
	}
	return a
}

// login runs the first sign-in for the current user.
func (a *app) login(ctx context.Context) error {
	decision, err := a.orch.Login(ctx)
	if err != nil {
		return err
	}
	return a.settle(ctx, decision)
}

// settle confirms with the user what to do with existing data when the
// orchestrator asks.
func (a *app) settle(ctx context.Context, decision daemon.Decision) error {

	switch decision {
	case daemon.DecisionAdoptCloud:
		ok, asked := confirm("Cloud data found for your account. Replace the data on this device with it?")
		if !asked {
			fmt.Fprintf(os.Stderr, "%s Cloud data found. Run 'dm login' to choose, or 'dm sync' to merge.\n", ui.RenderWarn("⚠"))
			return nil
		}
		if !ok {
			return a.orch.SetMode(daemon.ModeLocal)
		}
		if err := a.orch.AdoptCloud(ctx); err != nil {
			return err
		}
		fmt.Printf("%s Loaded %d people from the cloud\n", ui.RenderPass("✓"), len(a.local.GetAll()))

	case daemon.DecisionPushLocal:
		ok, asked := confirm("Your cloud storage is empty. Upload the data on this device?")
		if !asked {
			fmt.Fprintf(os.Stderr, "%s Local data is not in the cloud yet. Run 'dm migrate' to upload it.\n", ui.RenderWarn("⚠"))
			return nil
		}
		if !ok {
			return a.orch.SetMode(daemon.ModeLocal)
		}
		res, err := a.orch.PushLocal(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), res.Message)
	}
	return nil
}

// Close releases the stores.
func (a *app) Close() {
	if a.remote != nil {
		_ = a.remote.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
	if a.logOut != nil {
		_ = a.logOut.Close()
	}
}

// report prints the outcome of a write, treating a mirror failure as a warning.
func report(err error, okMsg string) {
	if err == nil {
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), okMsg)
		return
	}
	if daemon.IsMirrorError(err) {
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), okMsg)
		var me *daemon.MirrorError
		errors.As(err, &me)
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), remote.Describe(me.Err, "").Message)
		fmt.Fprintln(os.Stderr, "   Saved on this device. Run 'dm sync' when the cloud is reachable.")
		return
	}
	fail("%v", err)
}
