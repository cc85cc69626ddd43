package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	jsonrepo "github.com/runtimeterrors/aegisec/internal/infrastructure/persistence/json"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := jsonrepo.NewSessionRepository(resultsDir)
		if err != nil {
			return err
		}
		summaries, err := repo.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No sessions stored yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTARGET\tCATEGORY\tOPERATOR\tSTATUS\tATTEMPTS\tCREATED")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				s.ID, s.Target, s.Category, s.Operator,
				formatStateWithColor(string(s.Status)), s.Results, s.CreatedAt)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one session's outcomes and attempt log",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		full, _ := cmd.Flags().GetBool("full")
		if id == "" {
			return fmt.Errorf("--id is required")
		}

		repo, err := jsonrepo.NewSessionRepository(resultsDir)
		if err != nil {
			return err
		}
		sess, err := repo.FindByID(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorInfo("Session:"), sess.ID())
		fmt.Printf("  Target:   %s\n", sess.Target())
		fmt.Printf("  Category: %s\n", sess.Category())
		fmt.Printf("  Operator: %s\n", sess.Operator())
		fmt.Printf("  Status:   %s\n", formatStateWithColor(string(sess.Status())))
		fmt.Printf("  Created:  %s\n", sess.CreatedAt().Format("2006-01-02 15:04:05 MST"))
		if !sess.FinishedAt().IsZero() {
			fmt.Printf("  Finished: %s\n", sess.FinishedAt().Format("2006-01-02 15:04:05 MST"))
		}

		if turns := sess.Transcript(); len(turns) > 0 {
			fmt.Printf("\n%s\n", colorInfo("Consultation:"))
			for _, turn := range turns {
				fmt.Printf("  Q: %s\n  A: %s\n", turn.Question, turn.Answer)
			}
		}

		if outcomes := sess.Outcomes(); len(outcomes) > 0 {
			fmt.Printf("\n%s\n", colorInfo("Tool outcomes:"))
			for _, o := range outcomes {
				line := fmt.Sprintf("  %-14s %s (%d attempts)", o.Tool, formatStateWithColor(string(o.State)), o.Attempts)
				if o.Chained {
					line += " [chained]"
				}
				if o.Reason != "" {
					line += " - " + o.Reason
				}
				fmt.Println(line)
			}
		}

		fmt.Printf("\n%s\n", colorInfo("Attempt log:"))
		for i, r := range sess.Results() {
			fmt.Printf("  #%d %s attempt %d: %s exit=%d %.1fs\n",
				i+1, r.Tool, r.Attempt, formatStateWithColor(string(r.Outcome)), r.ExitCode, r.Duration)
			fmt.Printf("     argv: %s\n", strings.Join(r.Argv, " "))
			if r.TimedOut {
				fmt.Println("     timed out")
			}
			if r.Error != "" {
				fmt.Printf("     error: %s\n", r.Error)
			}
			if full {
				if out := strings.TrimSpace(r.Stdout); out != "" {
					fmt.Printf("     stdout:\n%s\n", indent(out, "       "))
				}
				if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
					fmt.Printf("     stderr:\n%s\n", indent(errOut, "       "))
				}
			}
			if r.Analysis != "" {
				fmt.Printf("     analysis: %s\n", r.Analysis)
			}
		}

		if sess.Summary() != "" {
			fmt.Printf("\n%s\n%s\n", colorInfo("Executive summary:"), sess.Summary())
		}
		return nil
	},
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	sessionsShowCmd.Flags().String("id", "", "session ID (required)")
	sessionsShowCmd.Flags().Bool("full", false, "include captured stdout/stderr")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}
