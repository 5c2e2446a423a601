package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"ai-letter/config"
	"ai-letter/metrics"
	"ai-letter/models"
	"ai-letter/quota"
)

// CallRecorder persists LLM call logs (ai_logs).
type CallRecorder interface {
	SaveAILog(ctx context.Context, log *models.AILog) error
}

// Gemini implements Reasoner with structured JSON output.
type Gemini struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	limiter  *quota.Limiter
	recorder CallRecorder
}

type GeminiOption func(*Gemini)

func WithRecorder(r CallRecorder) GeminiOption {
	return func(g *Gemini) { g.recorder = r }
}

// NewGemini reads GEMINI_API_KEY from the environment.
func NewGemini(ctx context.Context, cfg config.LLMConfig, limiter *quota.Limiter, opts ...GeminiOption) (*Gemini, error) {
	if cfg.Provider != "google" {
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if limiter == nil {
		limiter = quota.Unlimited()
	}

	g := &Gemini{
		client:  client,
		model:   cfg.ModelName,
		timeout: cfg.RequestTimeout,
		limiter: limiter,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gemini) Curate(ctx context.Context, req CurationRequest) (*CurationResponse, error) {
	prompt, err := curationPrompt(req)
	if err != nil {
		return nil, err
	}
	var out CurationResponse
	if err := g.generate(ctx, "curate", curationSystem(req), prompt, curationSchema(req), &out); err != nil {
		return nil, err
	}
	if out.Category == "" {
		out.Category = req.Category
	}
	return &out, nil
}

func (g *Gemini) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResponse, error) {
	var out SummaryResponse
	if err := g.generate(ctx, "summarize", SUMMARY_INSTRUCTION, summaryPrompt(req), summarySchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gemini) Frame(ctx context.Context, req FramingRequest) (*FramingResponse, error) {
	var out FramingResponse
	if err := g.generate(ctx, "frame", FRAMING_INSTRUCTION, framingPrompt(req), framingSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gemini) generate(ctx context.Context, op, system, prompt string, schema *genai.Schema, out any) error {
	if err := g.limiter.Reserve(ctx); err != nil {
		metrics.ReasoningCalls.WithLabelValues(op, "quota").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	startTime := time.Now()
	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
		},
	)

	var text string
	if err == nil && result != nil {
		text = result.Text()
	}
	g.record(ctx, op, system, prompt, text, result, startTime, err)

	if err != nil {
		metrics.ReasoningCalls.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal([]byte(stripCodeFence(text)), out); err != nil {
		metrics.ReasoningCalls.WithLabelValues(op, "malformed").Inc()
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedOutput, err)
	}
	metrics.ReasoningCalls.WithLabelValues(op, "ok").Inc()
	return nil
}

func (g *Gemini) record(ctx context.Context, op, system, prompt, response string, result *genai.GenerateContentResponse, started time.Time, callErr error) {
	log := &models.AILog{
		Operation:      op,
		ModelName:      g.model,
		DurationMs:     time.Since(started).Milliseconds(),
		InputPrompt:    fmt.Sprintf("%s\n\n%s", system, prompt),
		OutputResponse: response,
		RequestedAt:    started,
		CompletedAt:    time.Now(),
	}
	if callErr != nil {
		msg := callErr.Error()
		log.ErrorMessage = &msg
	}
	if result != nil {
		log.ModelVersion = result.ModelVersion
		if u := result.UsageMetadata; u != nil {
			log.InputTokens = int64(u.PromptTokenCount)
			log.OutputTokens = int64(u.CandidatesTokenCount)
			log.TotalTokens = int64(u.TotalTokenCount)
			metrics.ReasoningTokens.WithLabelValues(op, "input").Add(float64(u.PromptTokenCount))
			metrics.ReasoningTokens.WithLabelValues(op, "output").Add(float64(u.CandidatesTokenCount))
		}
	}

	config.Logger.Debugf("reasoning %s took %dms (tokens=%d)", op, log.DurationMs, log.TotalTokens)
	if g.recorder == nil {
		return
	}
	// 호출 ctx 가 타임아웃으로 끝났더라도 로그는 남긴다.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.recorder.SaveAILog(rctx, log); err != nil {
		config.Logger.Warnf("failed to save ai log (%s): %v", op, err)
	}
}

// stripCodeFence removes a ```json fence some models add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func int64Ptr(v int64) *int64 { return &v }

func curationSchema(req CurationRequest) *genai.Schema {
	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": {Type: genai.TypeString},
			"chosen": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"index":     {Type: genai.TypeInteger, Description: "index attribute of the chosen article"},
						"rationale": {Type: genai.TypeString},
					},
					Required: []string{"index", "rationale"},
				},
			},
		},
		Required: []string{"category", "chosen"},
	}
	if req.Max > 0 {
		s.Properties["chosen"].MaxItems = int64Ptr(int64(req.Max))
	}
	return s
}

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"bullet_points": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			MaxItems: int64Ptr(5),
		},
	},
	Required: []string{"bullet_points"},
}

var framingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"greeting": {Type: genai.TypeString},
		"intros": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"category": {Type: genai.TypeString},
					"intro":    {Type: genai.TypeString},
				},
				Required: []string{"category", "intro"},
			},
		},
		"closing": {Type: genai.TypeString},
	},
	Required: []string{"greeting", "intros", "closing"},
}
