package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OpenAIConfig configures the chat completion analyzer.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// OpenAIAnalyzer asks a chat model for a spelling/grammar error count and keywords.
type OpenAIAnalyzer struct {
	client   *openai.Client
	cfg      OpenAIConfig
	tracer   trace.Tracer
	logger   *zap.Logger
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewOpenAIAnalyzer builds the analyzer.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	factory := promauto.With(cfg.Registerer)
	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/essay-review-api/pkg/analyzer"),
		logger: cfg.Logger,
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "essay_review",
			Subsystem: "analyzer",
			Name:      "request_duration_seconds",
			Help:      "Duration of essay analysis requests",
		}, []string{"model"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "essay_review",
			Subsystem: "analyzer",
			Name:      "failures_total",
			Help:      "Number of failed essay analysis requests",
		}, []string{"model"}),
	}, nil
}

// Analyze implements Analyzer.
func (a *OpenAIAnalyzer) Analyze(parent context.Context, text string) (Result, error) {
	ctx, span := a.tracer.Start(parent, "analyzer.openai", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Int("essay.length", len(text)),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	a.duration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, a.fail(span, fmt.Errorf("openai analyze: %w", err))
	}
	if len(resp.Choices) == 0 {
		return Result{}, a.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{}, a.fail(span, err)
	}
	span.SetAttributes(attribute.Int("analysis.error_count", result.ErrorCount))
	return result, nil
}

func (a *OpenAIAnalyzer) fail(span trace.Span, err error) error {
	a.failures.WithLabelValues(a.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	a.logger.Warn("essay analysis failed", zap.String("model", a.cfg.Model), zap.Error(err))
	return err
}

const systemPrompt = "You proofread student essays. Respond with a JSON object " +
	`{"error_count": <number of spelling and grammar mistakes>, "keywords": [<up to 5 topical keywords>]}.`

func parseResponse(content string) (Result, error) {
	var payload struct {
		ErrorCount int      `json:"error_count"`
		Keywords   []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return Result{}, fmt.Errorf("parse analysis json: %w", err)
	}
	if payload.ErrorCount < 0 {
		payload.ErrorCount = 0
	}

	keywords := make([]string, 0, len(payload.Keywords))
	for _, k := range payload.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, strings.ToLower(k))
		}
	}
	return Result{ErrorCount: payload.ErrorCount, Keywords: keywords}, nil
}
