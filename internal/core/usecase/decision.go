package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/core/comps"
	"github.com/kirillkom/flipscout/internal/core/decision"
	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/flipscore"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

var _ ports.DecisionService = (*DecisionUseCase)(nil)

type DecisionUseCase struct {
	engine   *decision.Engine
	provider *comps.Provider
	logger   *zap.Logger
}

func NewDecisionUseCase(engine *decision.Engine, provider *comps.Provider, logger *zap.Logger) *DecisionUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionUseCase{engine: engine, provider: provider, logger: logger}
}

// Decide resolves comps when no explicit market value is given, grades their
// reliability and runs the gate engine.
func (uc *DecisionUseCase) Decide(ctx context.Context, req ports.DecideRequest) (*ports.DecisionReport, error) {
	input := req.Input
	report := &ports.DecisionReport{}

	if input.MarketValue == nil && req.Comps != nil {
		result, err := uc.Summarize(ctx, *req.Comps)
		if err != nil {
			return nil, err
		}
		report.Comps = &result
		input.MarketValue = result.Median
		if input.DataSource == domain.DataSourceUnspecified {
			input.DataSource = comps.SourceConfidence(result)
		}
	}

	result, err := uc.engine.Evaluate(input)
	if err != nil {
		return nil, fmt.Errorf("evaluate decision: %w", err)
	}
	report.Decision = result

	title := ""
	if req.Comps != nil {
		title = req.Comps.Query
	}
	report.FlipScore = flipscore.Score(domain.Opportunity{
		Title:         title,
		PurchasePrice: input.PurchasePrice,
		Decision:      result,
		Comps:         report.Comps,
	})

	fields := []zap.Field{
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("margin_percent", result.MarginPercent),
		zap.Int("confidence", result.Confidence),
		zap.String("data_source", string(input.DataSource)),
	}
	if result.SkipReason != nil {
		fields = append(fields, zap.String("skip_reason", string(*result.SkipReason)))
	}
	uc.logger.Debug("decision evaluated", fields...)
	return report, nil
}

func (uc *DecisionUseCase) Summarize(ctx context.Context, req ports.CompsRequest) (domain.CompsResult, error) {
	if req.Category != "" {
		if _, err := domain.ParseCategory(string(req.Category)); err != nil {
			return domain.CompsResult{}, err
		}
	}
	result, err := uc.provider.Resolve(ctx, req)
	if err != nil {
		return domain.CompsResult{}, fmt.Errorf("resolve comps: %w", err)
	}
	uc.logger.Debug("comps resolved",
		zap.String("query", result.Query),
		zap.String("source", string(result.Source)),
		zap.Int("raw", result.RawCount),
		zap.Int("cleaned", result.CleanedCount),
	)
	return result, nil
}

func (uc *DecisionUseCase) Rank(_ context.Context, opportunities []domain.Opportunity) []domain.RankedOpportunity {
	return flipscore.Rank(opportunities)
}
