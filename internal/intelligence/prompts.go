package intelligence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runtimeterrors/aegisec/internal/shared/constants"
)

const recommendSystemPrompt = "You are a penetration-testing planning assistant for authorized engagements. " +
	"Return JSON only, no markdown. " +
	`Schema: {"tools":[{"tool":"nmap","rationale":"...","priority":"high|medium|specialized"}]}. ` +
	"Order tools by execution sequence. Only name widely available command-line tools. " +
	"Never suggest destructive actions."

const consultSystemPrompt = "You are a penetration-testing consultant gathering requirements for an authorized test. " +
	"Ask exactly one short clarifying question about scope, attack vectors, or constraints. " +
	"When you have enough information, reply with the single word PROCEED."

const fixSystemPrompt = "You repair failed security-tool command lines. " +
	"Return JSON only: {\"argv\":[\"tool\",\"arg\",...]}. " +
	"Keep the same tool, fix only flags and arguments. If the command cannot be repaired, return {\"argv\":[]}."

const followUpSystemPrompt = "You are a penetration-testing planning assistant. Given a finished tool's output, " +
	"suggest at most two follow-up tools that would deepen the findings. " +
	"Return JSON only: {\"tools\":[{\"tool\":\"...\",\"rationale\":\"...\",\"priority\":\"...\"}]}. " +
	"Return {\"tools\":[]} when nothing useful remains."

const analyzeSystemPrompt = "You analyze security-tool output for an authorized engagement. " +
	"Summarize the notable findings in at most four sentences of plain text. No markdown."

const summarySystemPrompt = "You write executive summaries of authorized penetration-testing sessions. " +
	"Produce a short plain-text summary: what was tested, what was found, what to do next."

func buildRecommendPrompt(brief Brief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\nCategory: %s\n", brief.Target, brief.Category)
	if brief.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", brief.Notes)
	}
	writeHistory(&b, brief.History)
	b.WriteString("Recommend an ordered list of tools for this test.")
	return b.String()
}

func buildConsultPrompt(brief Brief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Planned test. Target: %s. Category: %s.\n", brief.Target, brief.Category)
	if brief.Notes != "" {
		fmt.Fprintf(&b, "Operator notes: %s\n", brief.Notes)
	}
	writeHistory(&b, brief.History)
	if len(brief.History) == 0 {
		b.WriteString("Begin the consultation.")
	}
	return b.String()
}

func buildFixPrompt(tool string, argv []string, errorText string) string {
	return fmt.Sprintf("Tool: %s\nFailed command: %s\nError output:\n%s",
		tool, strings.Join(argv, " "), clip(errorText, constants.PromptOutputLimitBytes))
}

func buildFollowUpPrompt(brief Brief, tool, output string, executed []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\nCategory: %s\n", brief.Target, brief.Category)
	fmt.Fprintf(&b, "Already executed: %s\n", strings.Join(executed, ", "))
	fmt.Fprintf(&b, "Latest tool: %s\nIts output:\n%s\n", tool, clip(output, constants.PromptOutputLimitBytes))
	b.WriteString("Suggest follow-up tools, or an empty list.")
	return b.String()
}

func buildAnalyzePrompt(tool, output, target string) string {
	return fmt.Sprintf("Tool: %s\nTarget: %s\nOutput:\n%s",
		tool, target, clip(output, constants.PromptOutputLimitBytes))
}

func buildSummaryPrompt(brief Brief, digests []ToolDigest) string {
	for i := range digests {
		digests[i].Output = clip(digests[i].Output, 500)
	}
	payload, err := json.Marshal(map[string]any{
		"target":   brief.Target,
		"category": brief.Category,
		"tools":    digests,
	})
	if err != nil {
		payload = []byte(fmt.Sprintf("target=%s category=%s", brief.Target, brief.Category))
	}
	return string(payload)
}

func writeHistory(b *strings.Builder, history []Exchange) {
	for _, turn := range history {
		fmt.Fprintf(b, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
	}
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n[truncated]"
}
