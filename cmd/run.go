package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	runapp "github.com/runtimeterrors/aegisec/internal/application/run"
	"github.com/runtimeterrors/aegisec/internal/domain/catalog"
	"github.com/runtimeterrors/aegisec/internal/domain/session"
	"github.com/runtimeterrors/aegisec/internal/infrastructure/executor"
	jsonrepo "github.com/runtimeterrors/aegisec/internal/infrastructure/persistence/json"
	"github.com/runtimeterrors/aegisec/internal/infrastructure/toolcheck"
	"github.com/runtimeterrors/aegisec/internal/intelligence"
	"github.com/runtimeterrors/aegisec/internal/safety"
	"github.com/runtimeterrors/aegisec/internal/shared/constants"
)

var runFlags struct {
	category     string
	target       string
	tools        []string
	wordlist     string
	username     string
	path         string
	notes        string
	noConsult    bool
	offline      bool
	autoApprove  bool
	allowPrivate bool
	timeoutSecs  int
	retries      int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consult the AI collaborator, select tools, and run them against an authorized target",
	Long: `Run one orchestrated testing session.

The collaborator is asked for an ordered tool plan for the target and
category; you approve or trim the plan before anything executes. Tools run
strictly one at a time, every attempt is recorded in an append-only session
log, and failed commands may be retried with an AI-corrected command line.

You are responsible for having authorization to test the target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.category, "category", "c", catalog.CategoryGeneral, "test category (see 'aegisec tools' for the taxonomy)")
	runCmd.Flags().StringVarP(&runFlags.target, "target", "t", "", "authorized target host, domain, or CIDR (required)")
	runCmd.Flags().StringSliceVar(&runFlags.tools, "tools", nil, "skip recommendation and run exactly these tools, in order")
	runCmd.Flags().StringVar(&runFlags.wordlist, "wordlist", "", "wordlist path for tools that need one")
	runCmd.Flags().StringVar(&runFlags.username, "username", "", "username for credential-testing tools")
	runCmd.Flags().StringVar(&runFlags.path, "path", "", "file or URL path for tools that need one")
	runCmd.Flags().StringVar(&runFlags.notes, "notes", "", "free-form scope notes forwarded to the collaborator")
	runCmd.Flags().BoolVar(&runFlags.noConsult, "no-consult", false, "skip the pre-run consultation exchange")
	runCmd.Flags().BoolVar(&runFlags.offline, "offline", false, "run without the collaborator, using built-in fallback plans")
	runCmd.Flags().BoolVarP(&runFlags.autoApprove, "auto-approve", "y", false, "approve recommended tools and follow-ups without prompting")
	runCmd.Flags().BoolVar(&runFlags.allowPrivate, "allow-private", false, "permit loopback/private-range targets (lab testing)")
	runCmd.Flags().IntVar(&runFlags.timeoutSecs, "timeout", 0, "per-attempt timeout in seconds (0 = configured default)")
	runCmd.Flags().IntVar(&runFlags.retries, "retries", 0, "attempt budget per tool (0 = configured default)")
	_ = runCmd.MarkFlagRequired("target")
}

func runSession(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runFlags.target == "" {
		return errors.New("target is required")
	}

	collab, err := buildCollaborator()
	if err != nil {
		return err
	}

	cat := catalog.Default()
	reader := bufio.NewReader(os.Stdin)

	transcript := []session.ConsultationTurn{}
	if collab != nil && !runFlags.noConsult {
		transcript = consult(ctx, collab, reader)
	}

	tools, err := selectTools(ctx, cat, collab, transcript, reader)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Println(colorWarn("No tools selected; nothing to do."))
		return nil
	}

	warnMissingTools(tools)

	repo, err := jsonrepo.NewSessionRepository(resultsDir)
	if err != nil {
		return err
	}

	execCfg := cliConfig.Execute
	if runFlags.timeoutSecs > 0 {
		execCfg.TimeoutSecs = runFlags.timeoutSecs
	}
	if runFlags.retries > 0 {
		execCfg.RetryBudget = runFlags.retries
	}
	if runFlags.allowPrivate {
		execCfg.AllowPrivate = true
	}

	engine := runapp.NewEngine(
		cat,
		&safety.Validator{AllowPrivate: execCfg.AllowPrivate},
		executor.OSSpawner{},
		collab,
		repo,
		logger,
		runapp.Options{
			RetryBudget:     execCfg.RetryBudget,
			ToolTimeout:     time.Duration(execCfg.TimeoutSecs) * time.Second,
			MaxChained:      execCfg.MaxChained,
			Analyze:         execCfg.Analyze,
			ConfirmFollowUp: followUpConfirmer(reader),
		},
	)

	params := map[string]string{}
	if runFlags.wordlist != "" {
		params["wordlist"] = runFlags.wordlist
	}
	if runFlags.username != "" {
		params["username"] = runFlags.username
	}
	if runFlags.path != "" {
		params["path"] = runFlags.path
	}

	fmt.Printf("%s target=%s category=%s tools=%s\n",
		colorInfo("Starting session:"), runFlags.target, runFlags.category, strings.Join(tools, ","))

	sess, runErr := engine.Run(ctx, runapp.Plan{
		Target:     runFlags.target,
		Category:   runFlags.category,
		Operator:   operator,
		Tools:      tools,
		Params:     params,
		Transcript: transcript,
		Notes:      runFlags.notes,
	})
	if sess != nil {
		printSessionSummary(sess)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Println(colorWarn("Run canceled; partial session retained."))
			return nil
		}
		return runErr
	}
	return nil
}

// buildCollaborator returns nil in offline mode. A missing API key outside
// offline mode is a configuration error surfaced before anything executes.
func buildCollaborator() (intelligence.Collaborator, error) {
	if runFlags.offline {
		return nil, nil
	}
	client, err := intelligence.NewChatClient(intelligence.Config{
		BaseURL:           cliConfig.API.BaseURL,
		APIKey:            cliConfig.API.Key,
		Model:             cliConfig.API.Model,
		Timeout:           time.Duration(cliConfig.API.TimeoutSecs) * time.Second,
		RequestsPerMinute: cliConfig.API.RequestsPerMinute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w (set AEGISEC_API_KEY or use --offline)", err)
	}
	return client, nil
}

// consult runs the bounded pre-run question/answer exchange. Collaborator
// failures end the consultation quietly; they never block the run.
func consult(ctx context.Context, collab intelligence.Collaborator, reader *bufio.Reader) []session.ConsultationTurn {
	fmt.Println(colorInfo("Pre-test consultation (answer, or type 'skip' to proceed):"))
	var transcript []session.ConsultationTurn
	brief := intelligence.Brief{Target: runFlags.target, Category: runFlags.category, Notes: runFlags.notes}

	for turn := 0; turn < constants.ConsultationMaxTurns; turn++ {
		question, done, err := collab.Consult(ctx, brief)
		if err != nil {
			logger.Warnw("consultation unavailable", "error", err)
			break
		}
		if done || question == "" {
			break
		}
		fmt.Printf("%s %s\n", colorInfo("AI:"), question)
		fmt.Print("> ")
		answer, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		answer = strings.TrimSpace(answer)
		if answer == "" || strings.EqualFold(answer, "skip") || strings.EqualFold(answer, "proceed") {
			break
		}
		entry := session.ConsultationTurn{Question: question, Answer: answer}
		transcript = append(transcript, entry)
		brief.History = append(brief.History, intelligence.Exchange{Question: question, Answer: answer})
	}
	return transcript
}

// selectTools resolves the ordered tool list: an explicit --tools override,
// otherwise collaborator recommendations (fallback plan when unavailable)
// filtered through interactive selection.
func selectTools(ctx context.Context, cat *catalog.Catalog, collab intelligence.Collaborator, transcript []session.ConsultationTurn, reader *bufio.Reader) ([]string, error) {
	if len(runFlags.tools) > 0 {
		for _, name := range runFlags.tools {
			if _, err := cat.Lookup(name); err != nil {
				return nil, err
			}
		}
		return runFlags.tools, nil
	}

	recs := recommendTools(ctx, collab, transcript)
	if len(recs) == 0 {
		return nil, errors.New("no recommendations available for this category")
	}

	// Drop recommendations the catalog cannot execute.
	known := recs[:0]
	for _, rec := range recs {
		if _, err := cat.Lookup(rec.Tool); err == nil {
			known = append(known, rec)
		}
	}
	if len(known) == 0 {
		return nil, errors.New("no recommended tool is present in the catalog")
	}

	fmt.Println(colorInfo("Recommended tools:"))
	for i, rec := range known {
		marker := " "
		if !toolcheck.Installed(rec.Tool) {
			marker = colorWarn("!")
		}
		fmt.Printf("  %2d.%s %-14s [%s] %s\n", i+1, marker, rec.Tool, rec.Priority, rec.Rationale)
	}

	if runFlags.autoApprove {
		return toolNames(known), nil
	}

	fmt.Print("Select tools (comma-separated numbers, 'all', or empty to cancel): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.EqualFold(line, "all") {
		return toolNames(known), nil
	}

	var selected []string
	for _, field := range strings.Split(line, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || idx < 1 || idx > len(known) {
			return nil, fmt.Errorf("invalid selection %q", strings.TrimSpace(field))
		}
		selected = append(selected, known[idx-1].Tool)
	}
	return selected, nil
}

func recommendTools(ctx context.Context, collab intelligence.Collaborator, transcript []session.ConsultationTurn) []intelligence.Recommendation {
	if collab == nil {
		return intelligence.FallbackRecommendations(runFlags.category)
	}
	brief := intelligence.Brief{Target: runFlags.target, Category: runFlags.category, Notes: runFlags.notes}
	for _, turn := range transcript {
		brief.History = append(brief.History, intelligence.Exchange{Question: turn.Question, Answer: turn.Answer})
	}
	recs, err := collab.Recommend(ctx, brief)
	if err != nil {
		logger.Warnw("recommendation unavailable, using fallback plan", "error", err)
		return intelligence.FallbackRecommendations(runFlags.category)
	}
	return recs
}

// followUpConfirmer implements the chaining policy: AI-suggested follow-up
// tools run only after explicit approval, or unconditionally under
// --auto-approve.
func followUpConfirmer(reader *bufio.Reader) func(intelligence.Recommendation) bool {
	if runFlags.autoApprove {
		return func(intelligence.Recommendation) bool { return true }
	}
	return func(rec intelligence.Recommendation) bool {
		fmt.Printf("%s insert follow-up tool %s (%s)? [y/N]: ", colorInfo("AI suggests:"), rec.Tool, rec.Rationale)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func warnMissingTools(tools []string) {
	for _, name := range tools {
		if !toolcheck.Installed(name) {
			fmt.Printf("%s %s is not on PATH; its attempts will fail until installed\n", colorWarn("warning:"), name)
		}
	}
}

func printSessionSummary(sess *session.Session) {
	fmt.Printf("\n%s %s (%s)\n", colorInfo("Session:"), sess.ID(), formatStateWithColor(string(sess.Status())))
	for _, outcome := range sess.Outcomes() {
		line := fmt.Sprintf("  %-14s %s", outcome.Tool, formatStateWithColor(string(outcome.State)))
		if outcome.Attempts > 1 {
			line += fmt.Sprintf(" (%d attempts)", outcome.Attempts)
		}
		if outcome.Reason != "" {
			line += " - " + outcome.Reason
		}
		fmt.Println(line)
	}
	if sess.Summary() != "" {
		fmt.Printf("\n%s\n%s\n", colorInfo("Executive summary:"), sess.Summary())
	}
	fmt.Printf("\n%s aegisec report --session %s\n", colorInfo("Render a report with:"), sess.ID())
}

func toolNames(recs []intelligence.Recommendation) []string {
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.Tool)
	}
	return names
}
