package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"churn-calculator/domain"
	"churn-calculator/repository"
)

const projectionCachePrefix = "projection:"

// roundTo2Decimals rounds a float64 to 2 decimal places.
func roundTo2Decimals(value float64) float64 {
	return math.Round(value*100) / 100
}

type ProjectionService struct {
	cache  repository.CacheRepository
	logger *zap.Logger
}

// NewProjectionService creates a ProjectionService backed by the given cache.
func NewProjectionService(cache repository.CacheRepository, logger *zap.Logger) *ProjectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectionService{cache: cache, logger: logger}
}

// Validate checks that the inputs are within the ranges the engine supports.
func Validate(in domain.CalculatorInputs) error {
	if !(in.AverageOrderValue > 0) || math.IsInf(in.AverageOrderValue, 0) {
		return domain.NewInvalidArgument("averageOrderValue", "average order value must be greater than 0")
	}
	if in.AverageOrderValue > MaxAverageOrderValue {
		return domain.NewInvalidArgument("averageOrderValue", "average order value exceeds the maximum of $%.2f", MaxAverageOrderValue)
	}
	if in.NumberOfCustomers < 1 {
		return domain.NewInvalidArgument("numberOfCustomers", "number of customers must be at least 1")
	}
	if in.NumberOfCustomers > MaxCustomers {
		return domain.NewInvalidArgument("numberOfCustomers", "number of customers exceeds the maximum of %d", MaxCustomers)
	}
	if !(in.PurchaseFrequency >= 1) || in.PurchaseFrequency > MaxPurchaseFrequency {
		return domain.NewInvalidArgument("purchaseFrequency", "purchase frequency must be between 1 and %.0f", MaxPurchaseFrequency)
	}
	if !(in.ChurnRate >= 0 && in.ChurnRate <= 100) {
		return domain.NewInvalidArgument("churnRate", "churn rate must be between 0 and 100")
	}
	if cac := in.CustomerAcquisitionCost; cac != nil && (!(*cac >= 0) || math.IsInf(*cac, 0)) {
		return domain.NewInvalidArgument("customerAcquisitionCost", "customer acquisition cost must be 0 or more")
	}
	if gm := in.GrossMargin; gm != nil && !(*gm >= 0 && *gm <= 100) {
		return domain.NewInvalidArgument("grossMargin", "gross margin must be between 0 and 100")
	}
	return nil
}

// Calculate validates the inputs and returns the projection, serving repeat
// inputs from the cache.
func (s *ProjectionService) Calculate(
	ctx context.Context,
	in domain.CalculatorInputs,
) (domain.CalculatorResults, error) {

	if err := Validate(in); err != nil {
		return domain.CalculatorResults{}, err
	}

	key, err := projectionCacheKey(in)
	if err != nil {
		s.logger.Warn("failed to build projection cache key", zap.Error(err))
	}

	if key != "" && s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			var results domain.CalculatorResults
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				return results, nil
			}
			s.logger.Warn("discarding unreadable cached projection", zap.String("key", key))
		}
	}

	results, err := Calculate(in)
	if err != nil {
		return domain.CalculatorResults{}, err
	}

	// Caching is not critical; a failure only costs a recomputation.
	if key != "" && s.cache != nil {
		if payload, err := json.Marshal(results); err == nil {
			if err := s.cache.Set(ctx, key, string(payload)); err != nil {
				s.logger.Warn("failed to cache projection", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return results, nil
}

func projectionCacheKey(in domain.CalculatorInputs) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return projectionCachePrefix + hex.EncodeToString(sum[:]), nil
}
