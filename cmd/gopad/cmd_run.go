package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gopad/cmd/gopad/ui"
	"gopad/internal/engine"
	"gopad/internal/ledger"
)

var (
	evalLines []string
	treeLimit int
	writeBack bool
)

// ErrExecution signals that at least one submission produced an error.
var ErrExecution = errors.New("execution failed")

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Run a file through the interpreter and print the transcript",
	Long: `Runs the file (or stdin with "-", or the saved buffer when omitted) as an
editor submission, then each --eval line as a command-line submission, and
prints the numbered transcript. The run is archived in the session history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFile,
}

var formatCmd = &cobra.Command{
	Use:   "format [file|-]",
	Short: "Format Go source",
	Args:  cobra.MaximumNArgs(1),
	RunE:  formatFile,
}

var treeCmd = &cobra.Command{
	Use:   "tree [file|-]",
	Short: "Print the syntax tree of Go source",
	Args:  cobra.MaximumNArgs(1),
	RunE:  treeFile,
}

func init() {
	runCmd.Flags().StringArrayVarP(&evalLines, "eval", "e", nil, "Command-line submission to run after the file (repeatable)")
	formatCmd.Flags().BoolVar(&writeBack, "write", false, "Write the result back to the file")
	treeCmd.Flags().IntVar(&treeLimit, "limit", 200, "Maximum lines to print (0 for all)")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := boot(ctx, bootOptions{session: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.waitEngine(ctx); err != nil {
		return err
	}

	failed := false
	if len(args) > 0 || len(evalLines) == 0 {
		text, err := readSource(args, a.kv)
		if err != nil {
			return err
		}
		if res := a.sess.Run(ctx, text, ledger.EditorSubmission); res.IsError() {
			failed = true
		}
	}
	for _, line := range evalLines {
		if res := a.sess.RunCommand(ctx, line); res.IsError() {
			failed = true
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), ledger.RenderText(a.sess.Ledger().Entries()))
	if failed {
		return ErrExecution
	}
	return nil
}

func formatFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := boot(ctx, bootOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	text, err := readSource(args, a.kv)
	if err != nil {
		return err
	}
	res := a.bridge.Format(ctx, text)
	if res.Kind != engine.KindFormattedText {
		return fmt.Errorf("format: %s", res.Display())
	}
	if writeBack && len(args) > 0 && args[0] != "-" {
		return os.WriteFile(args[0], []byte(res.Text), 0644)
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Text)
	return nil
}

func treeFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := boot(ctx, bootOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	text, err := readSource(args, a.kv)
	if err != nil {
		return err
	}
	res := a.bridge.Parse(ctx, text)
	if res.Kind != engine.KindParsedTreeJSON || res.Tree == nil {
		return fmt.Errorf("parse: %s", res.Display())
	}
	for _, line := range ui.TreeLines(res.Tree, treeLimit) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
