package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"gopad/internal/codestore"
	"gopad/internal/config"
	"gopad/internal/engine"
	"gopad/internal/examples"
	"gopad/internal/logging"
	"gopad/internal/session"
	"gopad/internal/share"
	"gopad/internal/store"
)

// app bundles everything a command needs. Fields are nil when the command
// did not ask for them.
type app struct {
	cfg    *config.Config
	db     *store.LocalStore
	kv     codestore.KV
	codec  *share.Codec
	bridge *engine.Bridge
	sess   *session.Session
}

type bootOptions struct {
	engine  bool
	session bool

	shareToken string
	dispatch   func(func())
}

func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		ws = "."
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	return abs, nil
}

func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// boot loads configuration, opens storage and, on request, starts the
// engine and a session. A database that cannot be opened degrades to
// in-memory storage.
func boot(ctx context.Context, opts bootOptions) (*app, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(ws, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat(),
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("logging disabled", zap.Error(err))
	}
	logging.Boot("workspace %s", ws)

	a := &app{
		cfg:   cfg,
		codec: &share.Codec{MaxDecodedBytes: cfg.Share.MaxDecodedBytes},
	}

	dbPath := cfg.DatabasePath(ws)
	db, err := store.NewLocalStore(dbPath)
	if err != nil {
		logger.Warn("database unavailable, using memory storage", zap.String("path", dbPath), zap.Error(err))
		a.kv = store.NewMemoryKV()
	} else {
		a.db = db
		a.kv = db
	}

	if !opts.engine && !opts.session {
		return a, nil
	}

	a.bridge = engine.NewBridge(engine.WithTimeout(cfg.GetExecutionTimeout()))
	a.bridge.Start(ctx, engine.YaegiLoader(engine.YaegiOptions{
		AllowedPackages: cfg.Engine.AllowedPackages,
	}))

	if opts.session {
		def, ok := examples.Get(cfg.Editor.DefaultExample)
		if !ok {
			def = examples.Default()
		}
		sopts := session.Options{
			Bridge:        a.bridge,
			Store:         a.kv,
			Codec:         a.codec,
			ShareBaseURL:  cfg.Share.BaseURL,
			ShareToken:    opts.shareToken,
			Default:       def,
			QuietInterval: cfg.GetQuietInterval(),
			Dispatch:      opts.dispatch,
		}
		if a.db != nil {
			sopts.Archive = a.db
		}
		a.sess, err = session.New(ctx, sopts)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	// Sessions run before the engine is ready; one-shot commands wait.
	if !opts.session {
		timer := logging.StartTimer(logging.CategoryBoot, "engine wait")
		defer timer.Stop()
		wctx, cancel := context.WithTimeout(ctx, cfg.GetLoadTimeout())
		defer cancel()
		if err := a.bridge.WaitReady(wctx); err != nil {
			a.close()
			return nil, fmt.Errorf("interpreter: %w", err)
		}
	}
	return a, nil
}

// waitEngine blocks until the interpreter is ready or the load timeout
// passes.
func (a *app) waitEngine(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.GetLoadTimeout())
	defer cancel()
	if err := a.bridge.WaitReady(ctx); err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.sess != nil {
		a.sess.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("closing database", zap.Error(err))
		}
	}
	logging.CloseAll()
}

// readSource returns the text of a file argument, stdin for "-", or the
// persisted buffer when no argument is given.
func readSource(args []string, kv codestore.KV) (string, error) {
	if len(args) > 0 {
		if args[0] == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			return string(data), nil
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	code, _ := codestore.Load(context.Background(), kv, codestore.Sources{Default: examples.Default()}, nil)
	return code.Text(), nil
}
