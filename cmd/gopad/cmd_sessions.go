package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gopad/internal/ledger"
)

var sessionLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List archived sessions or print one transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionLimit, "limit", "n", 20, "Maximum sessions or entries to show")
}

func listSessions(cmd *cobra.Command, args []string) error {
	a, err := boot(cmd.Context(), bootOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if a.db == nil {
		return fmt.Errorf("session history needs the database")
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		archived, err := a.db.SessionEntries(args[0], sessionLimit)
		if err != nil {
			return err
		}
		if len(archived) == 0 {
			fmt.Fprintf(out, "No entries for session %s\n", args[0])
			return nil
		}
		for _, e := range archived {
			kind, _ := ledger.ParseEntryKind(e.Kind)
			switch {
			case kind.IsSubmission():
				fmt.Fprintf(out, "%s %s\n", ledger.InLabel(e.Order), e.Text)
			case kind == ledger.ResultEcho && e.HasOrder:
				fmt.Fprintf(out, "%s %s\n", ledger.OutLabel(e.Order), e.Text)
			default:
				fmt.Fprintln(out, e.Text)
			}
		}
		return nil
	}

	sessions, err := a.db.ListSessions(sessionLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTRIES\tLAST ACTIVITY")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.ID, s.Entries, s.LastAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
