package cmd

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/runtimeterrors/aegisec/internal/domain/session"
	jsonrepo "github.com/runtimeterrors/aegisec/internal/infrastructure/persistence/json"
)

const (
	htmlTemplatePath     = "templates/report.html"
	markdownTemplatePath = "templates/report.md"
	reportOutputSnippet  = 2000
)

//go:embed templates/report.html templates/report.md
var reportTemplateFS embed.FS

var reportTemplateFuncs = map[string]any{
	"formatTime":     formatShortTimestamp,
	"formatDuration": formatDurationLabel,
	"stateLabel":     func(s session.State) string { return strings.ToUpper(string(s)) },
	"joinArgv":       func(argv []string) string { return strings.Join(argv, " ") },
	"snippet":        outputSnippet,
}

var (
	htmlReportTemplate = htmltemplate.Must(
		htmltemplate.New("report.html").Funcs(reportTemplateFuncs).ParseFS(reportTemplateFS, htmlTemplatePath),
	)
	markdownReportTemplate = texttemplate.Must(
		texttemplate.New("report.md").Funcs(reportTemplateFuncs).ParseFS(reportTemplateFS, markdownTemplatePath),
	)
)

// TemplateData is the view model shared by the markdown, HTML, and PDF
// renderers.
type TemplateData struct {
	ID          string
	Target      string
	Category    string
	Operator    string
	Status      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Transcript  []session.ConsultationTurn
	Outcomes    []session.ToolOutcome
	Results     []*session.ExecutionResult
	Summary     string
	Succeeded   int
	Failed      int
	GeneratedAt time.Time
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a stored session as markdown, HTML, or PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("session")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")

		if id == "" {
			return fmt.Errorf("--session is required")
		}
		format = strings.ToLower(format)
		if format == "markdown" {
			format = "md"
		}
		if format != "md" && format != "html" && format != "pdf" {
			return fmt.Errorf("invalid format: %s (must be md, html, or pdf)", format)
		}

		repo, err := jsonrepo.NewSessionRepository(resultsDir)
		if err != nil {
			return err
		}
		sess, err := repo.FindByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		data := buildTemplateData(sess)

		var content []byte
		switch format {
		case "md":
			var buf bytes.Buffer
			if err := markdownReportTemplate.Execute(&buf, data); err != nil {
				return fmt.Errorf("failed to render markdown report: %w", err)
			}
			content = buf.Bytes()
		case "html":
			var buf bytes.Buffer
			if err := htmlReportTemplate.Execute(&buf, data); err != nil {
				return fmt.Errorf("failed to render HTML report: %w", err)
			}
			content = buf.Bytes()
		case "pdf":
			content, err = generatePDFReportBytes(data)
			if err != nil {
				return fmt.Errorf("failed to render PDF report: %w", err)
			}
		}

		if outPath == "" {
			outPath = filepath.Join(resultsDir, sess.ID(), "report."+format)
		}
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("%s %s\n", colorSuccess("Report written:"), outPath)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("session", "", "session ID to render (required)")
	reportCmd.Flags().StringP("format", "f", "md", "output format: md, html, or pdf")
	reportCmd.Flags().StringP("output", "O", "", "output path (default <results_dir>/<id>/report.<format>)")
}

func buildTemplateData(sess *session.Session) TemplateData {
	data := TemplateData{
		ID:          sess.ID(),
		Target:      sess.Target(),
		Category:    sess.Category(),
		Operator:    sess.Operator(),
		Status:      string(sess.Status()),
		StartedAt:   sess.CreatedAt(),
		FinishedAt:  sess.FinishedAt(),
		Transcript:  sess.Transcript(),
		Outcomes:    sess.Outcomes(),
		Results:     sess.Results(),
		Summary:     sess.Summary(),
		GeneratedAt: time.Now().UTC(),
	}
	for _, o := range sess.Outcomes() {
		if o.State == session.StateSucceeded {
			data.Succeeded++
		} else {
			data.Failed++
		}
	}
	return data
}

func generatePDFReportBytes(data TemplateData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Session Report: %s", data.ID), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Target: %s", data.Target), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Category: %s", data.Category), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Operator: %s", data.Operator), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Started: %s", formatShortTimestamp(data.StartedAt)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Finished: %s", formatShortTimestamp(data.FinishedAt)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", strings.ToUpper(data.Status)), "", 1, "", false, 0, "")
	pdf.Ln(5)

	// Summary section
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Tools succeeded: %d | Tools failed: %d | Attempts logged: %d",
		data.Succeeded, data.Failed, len(data.Results)), "", 1, "", false, 0, "")
	if data.Summary != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 5, data.Summary, "", "", false)
	}
	pdf.Ln(5)

	// Consultation transcript
	if len(data.Transcript) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Consultation", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, turn := range data.Transcript {
			pdf.MultiCell(0, 5, fmt.Sprintf("Q: %s", turn.Question), "", "", false)
			pdf.MultiCell(0, 5, fmt.Sprintf("A: %s", turn.Answer), "", "", false)
			pdf.Ln(1)
		}
		pdf.Ln(3)
	}

	// Tool outcomes
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Tool Outcomes", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, o := range data.Outcomes {
		label := fmt.Sprintf("%s: %s (%d attempts)", o.Tool, strings.ToUpper(string(o.State)), o.Attempts)
		if o.Chained {
			label += " [chained]"
		}
		if o.Reason != "" {
			label += " - " + o.Reason
		}
		pdf.MultiCell(0, 5, label, "", "", false)
	}
	pdf.Ln(3)

	// Attempt log
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Attempt Log", "", 1, "", false, 0, "")
	pdf.Ln(2)

	for _, r := range data.Results {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 7, fmt.Sprintf("%s attempt %d - %s", r.Tool, r.Attempt, strings.ToUpper(string(r.Outcome))), "", 1, "", true, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf("Command: %s", strings.Join(r.Argv, " ")), "", "", false)
		pdf.CellFormat(0, 5, fmt.Sprintf("Exit: %d | Duration: %.1fs", r.ExitCode, r.Duration), "", 1, "", false, 0, "")
		if r.TimedOut {
			pdf.CellFormat(0, 5, "Timed out", "", 1, "", false, 0, "")
		}
		if r.Error != "" {
			pdf.MultiCell(0, 5, fmt.Sprintf("Error: %s", r.Error), "", "", false)
		}
		if r.Analysis != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, fmt.Sprintf("Analysis: %s", r.Analysis), "", "", false)
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func formatDurationLabel(seconds float64) string {
	if seconds < 1 {
		return fmt.Sprintf("%.0fms", seconds*1000)
	}
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("%dm%02ds", int(seconds)/60, int(seconds)%60)
}

func outputSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > reportOutputSnippet {
		s = s[:reportOutputSnippet] + "\n... (truncated)"
	}
	return s
}
