package domain

// CalculatorInputs are the validated business metrics for one projection.
// Optional fields are nil when the merchant did not supply them.
type CalculatorInputs struct {
	AverageOrderValue       float64  `json:"averageOrderValue"`
	NumberOfCustomers       int      `json:"numberOfCustomers"`
	PurchaseFrequency       float64  `json:"purchaseFrequency"`
	ChurnRate               float64  `json:"churnRate"`
	CustomerAcquisitionCost *float64 `json:"customerAcquisitionCost,omitempty"`
	GrossMargin             *float64 `json:"grossMargin,omitempty"`
}

type ChurnScenario struct {
	ReductionPercentage int     `json:"reductionPercentage"`
	AnnualSavings       float64 `json:"annualSavings"`
	ThreeYearSavings    float64 `json:"threeYearSavings"`
}

type CalculatorResults struct {
	AnnualRevenueLost     float64         `json:"annualRevenueLost"`
	LifetimeValueLost     map[int]float64 `json:"lifetimeValueLost"`
	ReplacementCost       float64         `json:"replacementCost"`
	ReducedChurnScenarios []ChurnScenario `json:"reducedChurnScenarios"`
	// CustomerLifespanYears is nil when churn is zero (infinite lifespan).
	CustomerLifespanYears *float64 `json:"customerLifespanYears,omitempty"`
}
