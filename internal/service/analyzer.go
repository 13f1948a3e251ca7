package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"deal_room/internal/domain"
	"deal_room/pkg/logger"
)

// AnalysisUnavailable показывается вместо анализа при любой его ошибке.
const AnalysisUnavailable = "Automated analysis is not available for these terms right now. Review them with your advisor before agreeing."

// ProjectContext: сведения о проекте, которые клиент передает для анализа.
type ProjectContext struct {
	Stage       string
	Industry    string
	FundingGoal *decimal.Decimal
}

type TermAnalyzer interface {
	Analyze(terms domain.DealTerms, project ProjectContext) (string, error)
}

type TermAnalysisService interface {
	AnalyzeDealTerms(ctx context.Context, terms domain.DealTerms, project ProjectContext) string
}

type termAnalysisService struct {
	analyzer TermAnalyzer
	log      logger.Logger
}

func NewTermAnalysisService(analyzer TermAnalyzer, log logger.Logger) TermAnalysisService {
	return &termAnalysisService{analyzer: analyzer, log: log}
}

// AnalyzeDealTerms никогда не возвращает ошибку: сбой и паника заменяются заглушкой.
func (s *termAnalysisService) AnalyzeDealTerms(ctx context.Context, terms domain.DealTerms, project ProjectContext) (result string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Term analyzer panicked", "panic", r)
			result = AnalysisUnavailable
		}
	}()

	if err := ctx.Err(); err != nil {
		s.log.Warn("Term analysis skipped", "error", err, "deal_type", terms.DealType())
		return AnalysisUnavailable
	}

	text, err := s.analyzer.Analyze(terms, project)
	if err != nil {
		s.log.Warn("Term analysis failed", "error", err, "deal_type", terms.DealType())
		return AnalysisUnavailable
	}
	if strings.TrimSpace(text) == "" {
		s.log.Warn("Term analyzer returned empty text", "deal_type", terms.DealType())
		return AnalysisUnavailable
	}
	return text
}

var errNothingToAnalyze = errors.New("terms have no deal type")

// typicalDilution: обычный диапазон доли инвестора по стадии проекта.
var typicalDilution = map[string][2]int64{
	"pre_seed": {5, 15},
	"seed":     {10, 25},
	"series_a": {15, 30},
	"series_b": {10, 20},
}

type ruleAnalyzer struct{}

// NewRuleAnalyzer: эвристики по рыночным диапазонам, без внешних вызовов.
func NewRuleAnalyzer() TermAnalyzer {
	return &ruleAnalyzer{}
}

func (a *ruleAnalyzer) Analyze(terms domain.DealTerms, project ProjectContext) (string, error) {
	if project.FundingGoal != nil {
		if err := domain.ValidateAmount("funding_goal", *project.FundingGoal); err != nil {
			return "", err
		}
	}
	if terms.Variant == nil {
		if terms.IsEmpty() {
			return "No terms have been proposed yet.", nil
		}
		return "", errNothingToAnalyze
	}

	notes := []string{terms.Summary() + "."}

	switch v := terms.Variant.(type) {
	case *domain.EquityTerms:
		notes = append(notes, a.equityNotes(terms.InvestmentAmount, v, project)...)
	case *domain.ConvertibleNoteTerms:
		notes = append(notes, a.convertibleNotes(v.ValuationCap, v.ConversionDiscount)...)
		if v.InterestRate != nil && v.InterestRate.GreaterThan(decimal.NewFromInt(8)) {
			notes = append(notes, fmt.Sprintf("An interest rate of %s%% is above the usual 2-8%% range for notes.", v.InterestRate))
		}
	case *domain.SAFETerms:
		notes = append(notes, a.convertibleNotes(v.ValuationCap, v.ConversionDiscount)...)
	case *domain.RevenueShareTerms:
		if v.RevenuePercentage != nil && v.RevenuePercentage.GreaterThan(decimal.NewFromInt(10)) {
			notes = append(notes, fmt.Sprintf("Sharing %s%% of revenue is a heavy burden on cash flow.", v.RevenuePercentage))
		}
		if v.ReturnCap == nil {
			notes = append(notes, "No return cap is set, so payments have no upper bound.")
		} else if v.ReturnCap.GreaterThan(decimal.NewFromInt(3)) {
			notes = append(notes, fmt.Sprintf("A %sx return cap is above the common 1.5-3x range.", v.ReturnCap))
		}
	case *domain.GrantTerms:
		notes = append(notes, "Grants are non-dilutive and carry no repayment obligation.")
	}

	if terms.InvestmentAmount != nil && project.FundingGoal != nil && project.FundingGoal.IsPositive() {
		share := terms.InvestmentAmount.Div(*project.FundingGoal).Mul(decimal.NewFromInt(100)).Round(0)
		notes = append(notes, fmt.Sprintf("This investment covers %s%% of the funding goal.", share))
	}

	return strings.Join(notes, " "), nil
}

func (a *ruleAnalyzer) equityNotes(amount *decimal.Decimal, eq *domain.EquityTerms, project ProjectContext) []string {
	var notes []string
	if eq.Percentage == nil {
		return append(notes, "The equity share has not been proposed yet.")
	}

	if amount != nil && eq.Percentage.IsPositive() {
		implied := amount.Div(eq.Percentage.Div(decimal.NewFromInt(100))).Round(0)
		notes = append(notes, fmt.Sprintf("The implied post-money valuation is %s.", domain.FormatMoney(implied)))
		if eq.Valuation != nil && eq.Valuation.IsPositive() {
			gap := implied.Sub(*eq.Valuation).Abs().Div(*eq.Valuation)
			if gap.GreaterThan(decimal.NewFromFloat(0.1)) {
				notes = append(notes, "It differs from the stated valuation by more than 10%, so the figures should be reconciled.")
			}
		}
	}

	if band, ok := typicalDilution[normalizeStage(project.Stage)]; ok {
		low, high := decimal.NewFromInt(band[0]), decimal.NewFromInt(band[1])
		switch {
		case eq.Percentage.GreaterThan(high):
			notes = append(notes, fmt.Sprintf("A %s%% stake is above the typical %d-%d%% for this stage.", eq.Percentage, band[0], band[1]))
		case eq.Percentage.LessThan(low):
			notes = append(notes, fmt.Sprintf("A %s%% stake is below the typical %d-%d%% for this stage.", eq.Percentage, band[0], band[1]))
		default:
			notes = append(notes, "The equity share is within the typical range for this stage.")
		}
	} else if eq.Percentage.GreaterThan(decimal.NewFromInt(25)) {
		notes = append(notes, "Giving up more than a quarter of the company in one round is significant dilution.")
	}
	return notes
}

func (a *ruleAnalyzer) convertibleNotes(valuationCap, discount *decimal.Decimal) []string {
	var notes []string
	if valuationCap == nil {
		notes = append(notes, "The instrument is uncapped, which favours the founder.")
	}
	if discount != nil && discount.GreaterThan(decimal.NewFromInt(25)) {
		notes = append(notes, fmt.Sprintf("A %s%% discount is above the usual 10-25%% range.", discount))
	}
	return notes
}

func normalizeStage(stage string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	return strings.NewReplacer("-", "_", " ", "_").Replace(stage)
}
