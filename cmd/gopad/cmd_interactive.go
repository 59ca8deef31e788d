package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gopad/cmd/gopad/repl"
	"gopad/internal/logging"
	"gopad/internal/watch"
)

// runInteractive launches the terminal interface.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dispatcher := &repl.Dispatcher{}
	a, err := boot(ctx, bootOptions{
		session:    true,
		shareToken: shareArg,
		dispatch:   dispatcher.Dispatch,
	})
	if err != nil {
		return err
	}
	defer a.close()

	m := repl.New(a.sess, repl.Options{
		LoadTimeout: a.cfg.GetLoadTimeout(),
		Dispatcher:  dispatcher,
	})
	defer m.Shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	dispatcher.Bind(p)

	path := watchFile
	if path == "" {
		path = a.cfg.Editor.WatchFile
	}
	var fw *watch.FileWatcher
	if path != "" {
		fw, err = watch.New(path, a.sess.Edit)
		if err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		defer fw.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	if fw != nil {
		g.Go(func() error {
			if err := fw.Start(gctx); err != nil {
				logger.Warn("file watch disabled", zap.String("path", path), zap.Error(err))
				p.Send(repl.Status("watch failed: " + err.Error()))
			}
			return nil
		})
	}

	err = g.Wait()
	logging.Boot("interactive session %s ended", a.sess.ID())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
