package sunreport

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	apperrors "github.com/yanqian/horizon/pkg/errors"
	"github.com/yanqian/horizon/pkg/metrics"
	"github.com/yanqian/horizon/pkg/util"
)

// Error codes returned by Analyze.
const (
	CodeInvalidInput      = "invalid_input"
	CodeAnalysisFailed    = "analysis_failed"
	CodeMalformedResponse = "malformed_response"
)

// FailureMessage is the only text users see when an analysis fails.
const FailureMessage = "Failed to analyze sun data. Please try again."

// Service produces sun reports for a location and date.
type Service interface {
	Analyze(ctx context.Context, req Request) (Report, error)
}

type service struct {
	cfg         Config
	generator   Generator
	diagnostics DiagnosticsSink
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires up the analysis domain.
func NewService(cfg Config, generator Generator, diagnostics DiagnosticsSink, logger *slog.Logger) Service {
	return &service{
		cfg:         cfg,
		generator:   generator,
		diagnostics: diagnostics,
		logger:      logger.With("component", "sunreport.service"),
		now:         util.NowUTC,
	}
}

func (s *service) Analyze(ctx context.Context, req Request) (Report, error) {
	if err := ValidateRequest(req); err != nil {
		return Report{}, err
	}
	loc, _ := validateLocation(req.Location)
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = util.CalendarDate(s.now())
	}

	prompt := BuildPrompt(loc, date)
	started := time.Now()
	gen, err := s.generator.Generate(ctx, GenerateRequest{
		Model:           s.cfg.Model,
		Prompt:          prompt,
		Temperature:     s.cfg.Temperature,
		SearchGrounding: s.cfg.SearchGrounding,
	})
	if err != nil {
		s.logger.Error("generative ai request failed", "error", err, "kind", loc.Kind, "date", date, "prompt_tokens", metrics.EstimateTokens(prompt))
		return Report{}, apperrors.Wrap(CodeAnalysisFailed, FailureMessage, err)
	}

	usage := gen.Usage
	if usage.IsZero() {
		usage.PromptTokens = metrics.EstimateTokens(prompt)
		usage.CompletionTokens = metrics.EstimateTokens(gen.Text)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	s.logger.Info("generative ai response received",
		"kind", loc.Kind,
		"date", date,
		"sources", len(gen.Sources),
		"latency_ms", time.Since(started).Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"total_tokens", usage.TotalTokens,
	)

	report, err := ParseReport(gen.Text, gen.Sources)
	if err != nil {
		s.logger.Error("generative ai response malformed", "error", err, "content", gen.Text)
		s.captureMalformed(ctx, MalformedCapture{Location: loc, Date: date, Model: s.cfg.Model, Raw: gen.Text, Reason: err.Error()})
		return Report{}, apperrors.Wrap(CodeMalformedResponse, FailureMessage, err)
	}
	return report, nil
}

func (s *service) captureMalformed(ctx context.Context, capture MalformedCapture) {
	if s.diagnostics == nil {
		return
	}
	if err := s.diagnostics.CaptureMalformed(context.WithoutCancel(ctx), capture); err != nil {
		s.logger.Warn("diagnostics capture failed", "error", err)
	}
}

// ValidateRequest checks the location variant and, when present, the
// YYYY-MM-DD date. An empty date means today.
func ValidateRequest(req Request) error {
	if _, err := validateLocation(req.Location); err != nil {
		return apperrors.Wrap(CodeInvalidInput, err.Error(), err)
	}
	if date := strings.TrimSpace(req.Date); date != "" {
		if _, err := util.ParseCalendarDate(date); err != nil {
			return apperrors.Wrap(CodeInvalidInput, "date must be formatted as YYYY-MM-DD", err)
		}
	}
	return nil
}

func validateLocation(loc LocationInput) (LocationInput, error) {
	switch loc.Kind {
	case LocationCoords:
		if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
			return LocationInput{}, errors.New("latitude must be within [-90, 90]")
		}
		if math.IsNaN(loc.Lng) || loc.Lng < -180 || loc.Lng > 180 {
			return LocationInput{}, errors.New("longitude must be within [-180, 180]")
		}
		return Coords(loc.Lat, loc.Lng), nil
	case LocationText:
		query := strings.TrimSpace(loc.Query)
		if query == "" {
			return LocationInput{}, errors.New("location cannot be empty")
		}
		return Text(query), nil
	default:
		return LocationInput{}, errors.New("location type must be coords or text")
	}
}
