package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gopad/internal/codestore"
	"gopad/internal/examples"
	"gopad/internal/share"
)

var saveShared bool

var shareCmd = &cobra.Command{
	Use:   "share [file|-]",
	Short: "Print a share link for a file or the saved buffer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  shareFile,
}

var openCmd = &cobra.Command{
	Use:   "open <link|token>",
	Short: "Decode a share link and print its code",
	Args:  cobra.ExactArgs(1),
	RunE:  openLink,
}

var examplesCmd = &cobra.Command{
	Use:   "examples [name]",
	Short: "List the built-in samples or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showExamples,
}

func init() {
	openCmd.Flags().BoolVar(&saveShared, "save", false, "Replace the saved buffer with the decoded code")
}

func shareFile(cmd *cobra.Command, args []string) error {
	a, err := boot(cmd.Context(), bootOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	text, err := readSource(args, a.kv)
	if err != nil {
		return err
	}
	token, err := a.codec.Encode(cmd.Context(), text)
	if err != nil {
		return err
	}
	link := "#" + token
	if base := a.cfg.Share.BaseURL; base != "" {
		if link, err = share.Link(base, token); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}

func openLink(cmd *cobra.Command, args []string) error {
	a, err := boot(cmd.Context(), bootOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	text, err := a.codec.Decode(cmd.Context(), share.TokenFromLink(args[0]))
	if err != nil {
		return err
	}
	if saveShared {
		codestore.New(a.kv, "").SetText(text)
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func showExamples(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range examples.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}
	code, ok := examples.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown example %q (have: %s)", args[0], strings.Join(examples.Names(), ", "))
	}
	fmt.Fprint(out, code)
	return nil
}
