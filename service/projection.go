package service

import (
	"math"
	"slices"

	"churn-calculator/domain"
)

// perCustomerAnnualRevenue is the margin-adjusted yearly revenue of one customer.
func perCustomerAnnualRevenue(in domain.CalculatorInputs) float64 {
	revenue := in.AverageOrderValue * in.PurchaseFrequency
	if in.GrossMargin != nil {
		revenue *= *in.GrossMargin / 100
	}
	return revenue
}

// AnnualRevenueLost is the revenue forgone in one year to churned customers.
func AnnualRevenueLost(in domain.CalculatorInputs) float64 {
	lostCustomers := float64(in.NumberOfCustomers) * in.ChurnRate / 100
	return lostCustomers * perCustomerAnnualRevenue(in)
}

// simulateLoss compounds churn year by year and returns the cumulative loss
// at the end of each year, index 0 being year 1.
func simulateLoss(in domain.CalculatorInputs, years int) []float64 {
	churn := in.ChurnRate / 100
	perCustomer := perCustomerAnnualRevenue(in)
	remaining := float64(in.NumberOfCustomers)

	totals := make([]float64, years)
	running := 0.0
	for y := 0; y < years; y++ {
		lost := remaining * churn
		running += lost * perCustomer
		remaining -= lost
		totals[y] = running
	}
	return totals
}

// LifetimeValueLost returns the cumulative loss at each requested horizon (in years).
func LifetimeValueLost(in domain.CalculatorInputs, years ...int) (map[int]float64, error) {
	if len(years) == 0 {
		return nil, domain.NewInvalidArgument("years", "at least one horizon is required")
	}
	for _, y := range years {
		if y < 1 {
			return nil, domain.NewInvalidArgument("years", "horizon must be at least 1 year, got %d", y)
		}
	}

	totals := simulateLoss(in, slices.Max(years))
	out := make(map[int]float64, len(years))
	for _, y := range years {
		out[y] = totals[y-1]
	}
	return out, nil
}

// ReplacementCost is what it costs to re-acquire one year of churned customers.
// It is zero when no acquisition cost was supplied.
func ReplacementCost(in domain.CalculatorInputs) float64 {
	if in.CustomerAcquisitionCost == nil {
		return 0
	}
	return float64(in.NumberOfCustomers) * in.ChurnRate / 100 * *in.CustomerAcquisitionCost
}

// ReductionScenarios projects the savings of lowering churn by each of
// ReductionPercentages, in ascending order.
func ReductionScenarios(in domain.CalculatorInputs) []domain.ChurnScenario {
	reductions := slices.Clone(ReductionPercentages)
	slices.Sort(reductions)

	baselineAnnual := AnnualRevenueLost(in)
	baselineThreeYear := simulateLoss(in, ScenarioHorizonYears)[ScenarioHorizonYears-1]

	scenarios := make([]domain.ChurnScenario, 0, len(reductions))
	for _, r := range reductions {
		adjusted := in
		adjusted.ChurnRate = in.ChurnRate * (1 - float64(r)/100)

		scenarios = append(scenarios, domain.ChurnScenario{
			ReductionPercentage: r,
			AnnualSavings:       baselineAnnual - AnnualRevenueLost(adjusted),
			ThreeYearSavings:    baselineThreeYear - simulateLoss(adjusted, ScenarioHorizonYears)[ScenarioHorizonYears-1],
		})
	}
	return scenarios
}

// CustomerLifespanYears is the expected customer lifetime; +Inf when churn is zero.
func CustomerLifespanYears(churnRate float64) float64 {
	if churnRate == 0 {
		return math.Inf(1)
	}
	return 1 / (churnRate / 100)
}

// Calculate runs the full projection with the default horizons.
func Calculate(in domain.CalculatorInputs) (domain.CalculatorResults, error) {
	ltv, err := LifetimeValueLost(in, DefaultHorizons...)
	if err != nil {
		return domain.CalculatorResults{}, err
	}

	results := domain.CalculatorResults{
		AnnualRevenueLost:     AnnualRevenueLost(in),
		LifetimeValueLost:     ltv,
		ReplacementCost:       ReplacementCost(in),
		ReducedChurnScenarios: ReductionScenarios(in),
	}
	if lifespan := CustomerLifespanYears(in.ChurnRate); !math.IsInf(lifespan, 1) {
		results.CustomerLifespanYears = &lifespan
	}
	return results, nil
}
