// Package intelligence talks to the external recommendation collaborator: an
// OpenRouter-compatible chat-completions API that recommends tools, repairs
// failed commands, and summarizes results. Everything it returns is advisory;
// callers must treat unavailability and garbage responses as normal and
// degrade gracefully.
package intelligence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/runtimeterrors/aegisec/internal/shared/constants"
	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// Exchange is one consultation question/answer pair.
type Exchange struct {
	Question string
	Answer   string
}

// Brief carries the run context every collaborator call is grounded in.
type Brief struct {
	Target   string
	Category string
	Notes    string
	History  []Exchange
}

// Recommendation is one entry of an ordered tool plan.
type Recommendation struct {
	Tool      string `json:"tool"`
	Rationale string `json:"rationale"`
	Priority  string `json:"priority"`
}

// ToolDigest condenses one executed tool for the executive summary prompt.
type ToolDigest struct {
	Tool    string `json:"tool"`
	Outcome string `json:"outcome"`
	Output  string `json:"output"`
}

// Collaborator is the narrow interface the execution engine consumes. The
// engine never depends on the HTTP client directly so tests can substitute a
// scripted fake.
type Collaborator interface {
	// Recommend returns an ordered tool plan for the brief.
	Recommend(ctx context.Context, brief Brief) ([]Recommendation, error)

	// Consult returns the next clarifying question, or done=true when the
	// collaborator has enough information to plan.
	Consult(ctx context.Context, brief Brief) (question string, done bool, err error)

	// FixCommand proposes a corrected argv for a failed command, or nil when
	// it has nothing usable.
	FixCommand(ctx context.Context, tool string, argv []string, errorText string) ([]string, error)

	// SuggestFollowUp proposes tools to insert into the remaining queue
	// based on a finished tool's output.
	SuggestFollowUp(ctx context.Context, brief Brief, tool, output string, executed []string) ([]Recommendation, error)

	// AnalyzeOutput summarizes one tool's output for the session record.
	AnalyzeOutput(ctx context.Context, tool, output, target string) (string, error)

	// Summarize produces the executive summary for a finished session.
	Summarize(ctx context.Context, brief Brief, digests []ToolDigest) (string, error)
}

// Config holds the chat API settings. All values come from the immutable CLI
// configuration; the client never reads ambient state.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// ChatClient implements Collaborator over an OpenRouter-compatible
// chat-completions endpoint.
type ChatClient struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewChatClient validates the configuration and builds a client. A missing
// API key is a configuration error surfaced before any execution begins.
func NewChatClient(cfg Config, logger *zap.SugaredLogger) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, sharedErrors.ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("collaborator model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultAPITimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = constants.DefaultAPIRequestsPerMinute
	}
	return &ChatClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:  logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chat performs one rate-limited completion call and returns the raw
// assistant content. All failures are wrapped as ErrCollaboratorUnavailable
// so callers can branch on the degrade-gracefully path with errors.Is.
func (c *ChatClient) chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrCollaboratorUnavailable, err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", sharedErrors.ErrCollaboratorUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", sharedErrors.ErrCollaboratorUnavailable, resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", sharedErrors.ErrCollaboratorUnavailable, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrCollaboratorUnavailable, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", sharedErrors.ErrCollaboratorUnavailable)
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// Recommend implements Collaborator.
func (c *ChatClient) Recommend(ctx context.Context, brief Brief) ([]Recommendation, error) {
	content, err := c.chat(ctx, recommendSystemPrompt, buildRecommendPrompt(brief), 600, 0.3)
	if err != nil {
		return nil, err
	}
	recs, err := ParseRecommendations(content)
	if err != nil {
		c.logger.Warnw("unparsable recommendation response", "error", err)
		return nil, err
	}
	return recs, nil
}

// Consult implements Collaborator.
func (c *ChatClient) Consult(ctx context.Context, brief Brief) (string, bool, error) {
	content, err := c.chat(ctx, consultSystemPrompt, buildConsultPrompt(brief), 300, 0.7)
	if err != nil {
		return "", false, err
	}
	if strings.Contains(strings.ToUpper(content), "PROCEED") {
		return "", true, nil
	}
	return content, false, nil
}

// FixCommand implements Collaborator.
func (c *ChatClient) FixCommand(ctx context.Context, tool string, argv []string, errorText string) ([]string, error) {
	content, err := c.chat(ctx, fixSystemPrompt, buildFixPrompt(tool, argv, errorText), 200, 0.1)
	if err != nil {
		return nil, err
	}
	fixed, err := ParseArgv(content)
	if err != nil {
		c.logger.Debugw("no usable command fix", "tool", tool, "error", err)
		return nil, err
	}
	return fixed, nil
}

// SuggestFollowUp implements Collaborator.
func (c *ChatClient) SuggestFollowUp(ctx context.Context, brief Brief, tool, output string, executed []string) ([]Recommendation, error) {
	content, err := c.chat(ctx, followUpSystemPrompt, buildFollowUpPrompt(brief, tool, output, executed), 400, 0.3)
	if err != nil {
		return nil, err
	}
	return ParseRecommendations(content)
}

// AnalyzeOutput implements Collaborator.
func (c *ChatClient) AnalyzeOutput(ctx context.Context, tool, output, target string) (string, error) {
	return c.chat(ctx, analyzeSystemPrompt, buildAnalyzePrompt(tool, output, target), 300, 0.3)
}

// Summarize implements Collaborator.
func (c *ChatClient) Summarize(ctx context.Context, brief Brief, digests []ToolDigest) (string, error) {
	return c.chat(ctx, summarySystemPrompt, buildSummaryPrompt(brief, digests), 700, 0.4)
}
