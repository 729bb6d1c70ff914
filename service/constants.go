package service

const (
	MaxAverageOrderValue = 1_000_000.0
	MaxCustomers         = 100_000_000
	MaxPurchaseFrequency = 365.0

	// Horizon used for the three-year savings of each reduction scenario.
	ScenarioHorizonYears = 3

	// Lead score saturates at this annual loss.
	LeadScoreCap = 1_000_000.0
	// Score assigned to degenerate (zero, negative or non-finite) losses.
	LeadScoreFloor = 10

	// Deals are only opened above this annual loss.
	DefaultDealThreshold = 50_000.0
	// Share of the loss assumed recoverable, over DefaultDealHorizonYears.
	DefaultDealCaptureRate  = 0.25
	DefaultDealHorizonYears = 3
)

var (
	DefaultHorizons      = []int{1, 3, 5}
	ReductionPercentages = []int{10, 25, 50}
)
