package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/bandcoach/internal/llm/prompts"
	"github.com/pavelanni/bandcoach/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrOracleUnavailable means the oracle could not be reached or answered with an error status.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrMalformedOutput means the oracle answered but the reply is not the expected JSON.
	ErrMalformedOutput = errors.New("oracle returned malformed output")
)

const (
	markMaxTokens     = 3000
	generateMaxTokens = 2000

	// MaxCandidates caps how many questions one generation call may ask for.
	MaxCandidates = 5
	// DefaultCandidates is used when the request does not name a count.
	DefaultCandidates = 3
	// SampleLimit is how many stored prompts are sent as style examples.
	SampleLimit = 10
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// New creates a new LLM client. maxTokens <= 0 keeps the per-call defaults.
func New(baseURL, apiKey, modelName string, maxTokens int) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Ping checks that the endpoint answers by listing its models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: list models: %v", ErrOracleUnavailable, err)
	}
	return nil
}

// MarkRequest is the essay and question context sent for marking.
type MarkRequest struct {
	Essay             string
	PromptText        string
	TaskType          model.TaskType
	WordCount         int
	VisualDescription string
}

// Mark sends one essay to the oracle and returns its validated verdict together
// with the cleaned JSON text it was parsed from.
func (c *Client) Mark(ctx context.Context, req MarkRequest) (*model.ExaminerFeedback, []byte, error) {
	system, err := prompts.ExaminerSystem()
	if err != nil {
		return nil, nil, err
	}
	user, err := prompts.BuildMarkPrompt(prompts.MarkData{
		TaskType:          req.TaskType,
		PromptText:        req.PromptText,
		VisualDescription: req.VisualDescription,
		WordCount:         req.WordCount,
		Essay:             req.Essay,
	})
	if err != nil {
		return nil, nil, err
	}

	raw, err := c.complete(ctx, system, user, c.tokens(markMaxTokens), 0.1)
	if err != nil {
		return nil, nil, err
	}
	fb, cleaned, err := ParseFeedback(raw)
	if err != nil {
		slog.Error("marking reply rejected", "error", err, "raw", truncate(raw, 500))
		return nil, nil, err
	}
	return fb, cleaned, nil
}

// GenerateRequest selects what kind of questions to generate.
type GenerateRequest struct {
	Task              model.TaskType
	Count             int
	Task1Type         *model.Task1Type
	Task2QuestionType *model.Task2QuestionType
}

// Normalize defaults Task to task2 and clamps Count to [1, MaxCandidates]. A
// sub-type that does not belong to Task is cleared.
func (r GenerateRequest) Normalize() GenerateRequest {
	if r.Task != model.Task1 {
		r.Task = model.Task2
	}
	switch {
	case r.Count < 1:
		r.Count = 1
	case r.Count > MaxCandidates:
		r.Count = MaxCandidates
	}
	if r.Task == model.Task1 {
		r.Task2QuestionType = nil
	} else {
		r.Task1Type = nil
	}
	return r
}

// Filter returns the catalog filter that selects style examples for r.
func (r GenerateRequest) Filter() model.PromptFilter {
	f := model.PromptFilter{Task: r.Task}
	if r.Task1Type != nil {
		f.Task1Type = *r.Task1Type
	}
	if r.Task2QuestionType != nil {
		f.Task2QuestionType = *r.Task2QuestionType
	}
	return f
}

// GenerateCandidates asks the oracle for new questions in the style of samples.
// Candidates are returned for review and never stored here.
func (c *Client) GenerateCandidates(ctx context.Context, req GenerateRequest, samples []model.PromptRecord) ([]model.PromptRecord, error) {
	req = req.Normalize()

	data := prompts.GenerateData{Task: req.Task, Count: req.Count, Samples: samples}
	if req.Task1Type != nil {
		data.Task1Type = string(*req.Task1Type)
	}
	if req.Task2QuestionType != nil {
		data.Task2QuestionType = string(*req.Task2QuestionType)
	}

	system, err := prompts.GenerateSystem()
	if err != nil {
		return nil, err
	}
	user, err := prompts.BuildGeneratePrompt(data)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, system, user, c.tokens(generateMaxTokens), 0.8)
	if err != nil {
		return nil, err
	}
	candidates, err := ParseCandidates(raw)
	if err != nil {
		slog.Error("generation reply rejected", "error", err, "raw", truncate(raw, 500))
		return nil, err
	}
	return candidates, nil
}

func (c *Client) tokens(def int) int {
	if c.maxTokens > 0 {
		return c.maxTokens
	}
	return def
}

// complete runs a single system+user exchange and returns the concatenated text of the reply.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in reply", ErrMalformedOutput)
	}

	msg := resp.Choices[0].Message
	var sb strings.Builder
	sb.WriteString(msg.Content)
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			sb.WriteString(part.Text)
		}
	}
	raw := sb.String()
	slog.Debug("LLM response", "model", c.model, "raw", raw)
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
