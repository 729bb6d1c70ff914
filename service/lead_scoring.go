package service

import (
	"math"

	"churn-calculator/domain"
)

// LeadScore maps a projected annual loss onto 0-100. Losses at or above
// LeadScoreCap score 100; degenerate losses get LeadScoreFloor.
func LeadScore(annualRevenueLost float64) int {
	if math.IsNaN(annualRevenueLost) || math.IsInf(annualRevenueLost, 0) || annualRevenueLost <= 0 {
		return LeadScoreFloor
	}
	capped := math.Min(annualRevenueLost, LeadScoreCap)
	return int(math.Round(capped / LeadScoreCap * 100))
}

// ClassifyLifecycleStage returns explicit when set, otherwise the stage for score.
func ClassifyLifecycleStage(score int, explicit domain.LifecycleStage) domain.LifecycleStage {
	if explicit != "" {
		return explicit
	}
	switch {
	case score >= 80:
		return domain.StageSalesQualified
	case score >= 60:
		return domain.StageMarketingQualified
	case score >= 40:
		return domain.StageLead
	default:
		return domain.StageSubscriber
	}
}
