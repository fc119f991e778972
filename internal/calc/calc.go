// Package calc implements the deterministic mortgage calculators.
//
// Every function is total: invalid input yields a *ValidationError, never a
// panic, and valid input always yields a result. The language model never
// performs this arithmetic itself.
package calc

import (
	"fmt"
	"math"
)

// DefaultInterestRate is the annual rate (percent) assumed when the user has
// not supplied one. 4.5% reflects the prevailing UAE expat mortgage market.
const DefaultInterestRate = 4.5

const (
	maxTenureYears = 25
	maxLTVPercent  = 80.0

	transferFeeRate = 0.04
	agencyFeeRate   = 0.02
	miscFeeRate     = 0.01

	// Annual maintenance estimate as a fraction of property value.
	maintenanceRate = 0.001

	// EMI above this share of monthly income is flagged as stretched.
	affordabilityLimitPercent = 30.0
)

// ValidationError describes a rejected calculator input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EMIInput are the arguments for an EMI calculation.
type EMIInput struct {
	LoanAmount   float64 `json:"loan_amount"`
	InterestRate float64 `json:"interest_rate"`
	TenureYears  int     `json:"tenure_years"`
}

// EMIResult is the outcome of an EMI calculation, amounts rounded to 2 decimals.
type EMIResult struct {
	EMI           float64 `json:"emi"`
	TotalAmount   float64 `json:"total_amount"`
	TotalInterest float64 `json:"total_interest"`
	LoanAmount    float64 `json:"loan_amount"`
	InterestRate  float64 `json:"interest_rate"`
	TenureYears   int     `json:"tenure_years"`
	TenureMonths  int     `json:"tenure_months"`
}

// EMI computes the equated monthly installment:
// EMI = P × r × (1+r)^n / ((1+r)^n − 1), straight-line when the rate is zero.
func EMI(in EMIInput) (*EMIResult, error) {
	if in.LoanAmount <= 0 {
		return nil, &ValidationError{Field: "loan_amount", Reason: "must be positive"}
	}
	if in.TenureYears < 1 || in.TenureYears > maxTenureYears {
		return nil, &ValidationError{Field: "tenure_years", Reason: fmt.Sprintf("must be between 1 and %d years", maxTenureYears)}
	}
	if in.InterestRate < 0 {
		return nil, &ValidationError{Field: "interest_rate", Reason: "cannot be negative"}
	}

	monthlyRate := in.InterestRate / 100 / 12
	months := in.TenureYears * 12

	var emi float64
	if monthlyRate == 0 {
		emi = in.LoanAmount / float64(months)
	} else {
		factor := math.Pow(1+monthlyRate, float64(months))
		emi = in.LoanAmount * monthlyRate * factor / (factor - 1)
	}

	total := emi * float64(months)

	return &EMIResult{
		EMI:           round2(emi),
		TotalAmount:   round2(total),
		TotalInterest: round2(total - in.LoanAmount),
		LoanAmount:    in.LoanAmount,
		InterestRate:  in.InterestRate,
		TenureYears:   in.TenureYears,
		TenureMonths:  months,
	}, nil
}

// LTVInput are the arguments for a loan-to-value check.
type LTVInput struct {
	PropertyPrice float64 `json:"property_price"`
	DownPayment   float64 `json:"down_payment"`
}

// LTVResult is the outcome of a loan-to-value check. Valid=false is advisory:
// the down payment falls short of the 20% minimum by Shortfall, but the check
// itself succeeded.
type LTVResult struct {
	LTVRatio               float64 `json:"ltv_ratio"`
	LoanAmount             float64 `json:"loan_amount"`
	MaxLoanable            float64 `json:"max_loanable"`
	MinDownPaymentRequired float64 `json:"min_down_payment_required"`
	Shortfall              float64 `json:"shortfall,omitempty"`
	Valid                  bool    `json:"is_valid"`
	PropertyPrice          float64 `json:"property_price"`
	DownPayment            float64 `json:"down_payment"`
	Message                string  `json:"message"`
}

// LTV checks the loan-to-value ratio against the 80% expat ceiling.
func LTV(in LTVInput) (*LTVResult, error) {
	if in.PropertyPrice <= 0 {
		return nil, &ValidationError{Field: "property_price", Reason: "must be positive"}
	}
	if in.DownPayment < 0 {
		return nil, &ValidationError{Field: "down_payment", Reason: "cannot be negative"}
	}
	if in.DownPayment >= in.PropertyPrice {
		return nil, &ValidationError{Field: "down_payment", Reason: "cannot equal or exceed property price"}
	}

	loan := in.PropertyPrice - in.DownPayment
	maxLoanable := in.PropertyPrice * maxLTVPercent / 100
	minDown := in.PropertyPrice - maxLoanable

	res := &LTVResult{
		LTVRatio:               round2(loan / in.PropertyPrice * 100),
		LoanAmount:             round2(loan),
		MaxLoanable:            round2(maxLoanable),
		MinDownPaymentRequired: round2(minDown),
		Valid:                  in.DownPayment >= minDown,
		PropertyPrice:          in.PropertyPrice,
		DownPayment:            in.DownPayment,
	}

	if res.Valid {
		res.Message = "Valid"
	} else {
		res.Shortfall = round2(minDown - in.DownPayment)
		res.Message = fmt.Sprintf("LTV exceeds %.0f%%. Minimum down payment required: %.0f AED", maxLTVPercent, minDown)
	}

	return res, nil
}

// UpfrontCostsInput are the arguments for an upfront-cost breakdown.
type UpfrontCostsInput struct {
	PropertyPrice float64 `json:"property_price"`
}

// UpfrontCostsResult itemizes one-time purchase costs (7% of price).
type UpfrontCostsResult struct {
	PropertyPrice  float64 `json:"property_price"`
	TransferFee    float64 `json:"transfer_fee"`
	AgencyFee      float64 `json:"agency_fee"`
	MiscFee        float64 `json:"misc_fee"`
	Total          float64 `json:"total_upfront_costs"`
	Percentage     float64 `json:"percentage"`
	TotalWithCosts float64 `json:"total_with_costs"`
}

// UpfrontCosts computes the 4% transfer, 2% agency and 1% miscellaneous fees.
func UpfrontCosts(in UpfrontCostsInput) (*UpfrontCostsResult, error) {
	if in.PropertyPrice <= 0 {
		return nil, &ValidationError{Field: "property_price", Reason: "must be positive"}
	}

	transfer := in.PropertyPrice * transferFeeRate
	agency := in.PropertyPrice * agencyFeeRate
	misc := in.PropertyPrice * miscFeeRate
	total := transfer + agency + misc

	return &UpfrontCostsResult{
		PropertyPrice:  in.PropertyPrice,
		TransferFee:    round2(transfer),
		AgencyFee:      round2(agency),
		MiscFee:        round2(misc),
		Total:          round2(total),
		Percentage:     (transferFeeRate + agencyFeeRate + miscFeeRate) * 100,
		TotalWithCosts: round2(in.PropertyPrice + total),
	}, nil
}

// BuyVsRentInput are the arguments for a buy-vs-rent analysis.
// InterestRate falls back to DefaultInterestRate when zero.
type BuyVsRentInput struct {
	MonthlyRent   float64 `json:"monthly_rent"`
	PropertyPrice float64 `json:"property_price"`
	StayYears     int     `json:"stay_years"`
	Income        float64 `json:"income"`
	DownPayment   float64 `json:"down_payment"`
	InterestRate  float64 `json:"interest_rate"`
}

// BuyVsRentResult carries the recommendation plus the figures behind it.
// AffordabilityRatio and the LTV advisory are informational and never change
// the recommendation.
type BuyVsRentResult struct {
	Recommendation       string     `json:"recommendation"`
	Reasoning            []string   `json:"reasoning"`
	MonthlyRent          float64    `json:"monthly_rent"`
	MonthlyOwnershipCost float64    `json:"monthly_ownership_cost"`
	MonthlyInterest      float64    `json:"monthly_interest"`
	MaintenanceEstimate  float64    `json:"maintenance_estimate"`
	EMI                  float64    `json:"emi"`
	AffordabilityRatio   float64    `json:"affordability_ratio"`
	Affordable           bool       `json:"is_affordable"`
	StayYears            int        `json:"stay_years"`
	UpfrontCosts         float64    `json:"upfront_costs"`
	LTVDetails           *LTVResult `json:"ltv_details,omitempty"`
}

const (
	RecommendBuy  = "BUY"
	RecommendRent = "RENT"
)

// BuyVsRent recommends buying or renting. Stays under 3 years always favor
// renting (transaction costs dominate), stays over 5 always favor buying
// (equity accrual dominates); in between the monthly ownership cost
// (interest portion + maintenance) is compared against rent.
func BuyVsRent(in BuyVsRentInput) (*BuyVsRentResult, error) {
	if in.MonthlyRent <= 0 {
		return nil, &ValidationError{Field: "monthly_rent", Reason: "must be positive"}
	}
	if in.PropertyPrice <= 0 {
		return nil, &ValidationError{Field: "property_price", Reason: "must be positive"}
	}
	if in.StayYears <= 0 {
		return nil, &ValidationError{Field: "stay_years", Reason: "must be positive"}
	}
	if in.Income <= 0 {
		return nil, &ValidationError{Field: "income", Reason: "must be positive"}
	}
	if in.DownPayment < 0 {
		return nil, &ValidationError{Field: "down_payment", Reason: "cannot be negative"}
	}

	rate := in.InterestRate
	if rate == 0 {
		rate = DefaultInterestRate
	}

	loan := in.PropertyPrice - in.DownPayment
	if loan <= 0 {
		loan = in.PropertyPrice
	}

	monthlyInterest := loan * rate / 100 / 12
	maintenance := in.PropertyPrice * maintenanceRate / 12
	ownershipCost := monthlyInterest + maintenance

	upfront, err := UpfrontCosts(UpfrontCostsInput{PropertyPrice: in.PropertyPrice})
	if err != nil {
		return nil, err
	}

	emiRes, err := EMI(EMIInput{LoanAmount: loan, InterestRate: rate, TenureYears: maxTenureYears})
	if err != nil {
		return nil, err
	}

	res := &BuyVsRentResult{
		MonthlyRent:          in.MonthlyRent,
		MonthlyOwnershipCost: round2(ownershipCost),
		MonthlyInterest:      round2(monthlyInterest),
		MaintenanceEstimate:  round2(maintenance),
		EMI:                  emiRes.EMI,
		StayYears:            in.StayYears,
		UpfrontCosts:         upfront.Total,
	}

	switch {
	case in.StayYears < 3:
		res.Recommendation = RecommendRent
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Planning to stay less than 3 years. Transaction costs (%.0f AED) would outweigh benefits.", upfront.Total))
	case in.StayYears > 5:
		res.Recommendation = RecommendBuy
		res.Reasoning = append(res.Reasoning,
			"Planning to stay more than 5 years. Equity buildup and long-term savings favor buying.")
	case ownershipCost < in.MonthlyRent:
		res.Recommendation = RecommendBuy
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Monthly ownership cost (%.0f AED) is less than rent (%.0f AED).", ownershipCost, in.MonthlyRent))
	default:
		res.Recommendation = RecommendRent
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Monthly rent (%.0f AED) is less than ownership cost (%.0f AED) for now.", in.MonthlyRent, ownershipCost))
	}

	res.AffordabilityRatio = round2(emiRes.EMI / in.Income * 100)
	res.Affordable = res.AffordabilityRatio <= affordabilityLimitPercent
	if !res.Affordable {
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Note: EMI (%.0f AED) is %.1f%% of income; the usual guideline is %.0f%%.", emiRes.EMI, res.AffordabilityRatio, affordabilityLimitPercent))
	}

	if ltv, err := LTV(LTVInput{PropertyPrice: in.PropertyPrice, DownPayment: in.DownPayment}); err == nil {
		res.LTVDetails = ltv
	}

	return res, nil
}
