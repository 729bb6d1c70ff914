package service

import (
	"strconv"
	"strings"

	"churn-calculator/domain"
)

// CalculatorRequest is the calculator form as submitted by the browser, where
// amounts may carry currency symbols and rates a trailing percent sign.
type CalculatorRequest struct {
	AverageOrderValue       string `json:"averageOrderValue"`
	NumberOfCustomers       string `json:"numberOfCustomers"`
	PurchaseFrequency       string `json:"purchaseFrequency"`
	ChurnRate               string `json:"churnRate"`
	CustomerAcquisitionCost string `json:"customerAcquisitionCost,omitempty"`
	GrossMargin             string `json:"grossMargin,omitempty"`
}

// ParseCurrency strips everything except digits and the decimal point and
// parses the remainder, so "$1,250.50" becomes 1250.5.
func ParseCurrency(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0, domain.NewInvalidArgument("currency", "%q is not a number", raw)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, domain.NewInvalidArgument("currency", "%q is not a number", raw)
	}
	return v, nil
}

// FormatPercentage renders a rate rounded to 2 decimals with a % suffix.
func FormatPercentage(v float64) string {
	return strconv.FormatFloat(roundTo2Decimals(v), 'f', -1, 64) + "%"
}

// ParsePercentage reads back a value produced by FormatPercentage, or a bare number.
func ParsePercentage(raw string) (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.NewInvalidArgument("percentage", "%q is not a percentage", raw)
	}
	return v, nil
}

// ToInputs converts the raw form into CalculatorInputs. Blank optional fields
// stay nil. Range checks are left to Validate.
func (r CalculatorRequest) ToInputs() (domain.CalculatorInputs, error) {
	var in domain.CalculatorInputs
	var err error

	if in.AverageOrderValue, err = ParseCurrency(r.AverageOrderValue); err != nil {
		return in, fieldError("averageOrderValue", err)
	}
	customers, err := ParseCurrency(r.NumberOfCustomers)
	if err != nil {
		return in, fieldError("numberOfCustomers", err)
	}
	if customers != float64(int(customers)) {
		return in, domain.NewInvalidArgument("numberOfCustomers", "number of customers must be a whole number")
	}
	in.NumberOfCustomers = int(customers)

	if in.PurchaseFrequency, err = ParseCurrency(r.PurchaseFrequency); err != nil {
		return in, fieldError("purchaseFrequency", err)
	}
	if in.ChurnRate, err = ParsePercentage(r.ChurnRate); err != nil {
		return in, fieldError("churnRate", err)
	}

	if strings.TrimSpace(r.CustomerAcquisitionCost) != "" {
		cac, err := ParseCurrency(r.CustomerAcquisitionCost)
		if err != nil {
			return in, fieldError("customerAcquisitionCost", err)
		}
		in.CustomerAcquisitionCost = &cac
	}
	if strings.TrimSpace(r.GrossMargin) != "" {
		gm, err := ParsePercentage(r.GrossMargin)
		if err != nil {
			return in, fieldError("grossMargin", err)
		}
		in.GrossMargin = &gm
	}
	return in, nil
}

func fieldError(field string, err error) error {
	return &domain.Error{Kind: domain.KindInvalidArgument, Code: field, Message: "invalid " + field, Err: err}
}
