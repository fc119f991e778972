package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smartfriend/mortgage-advisor/internal/calc"
)

// Result is the outcome of one tool call. Payload is either a calculator
// result struct or an ErrorPayload; it is always marshalable. Skipped marks
// calls that were rejected before any calculator ran.
type Result struct {
	Payload any
	Skipped bool
}

// ErrorPayload is the structured error form surfaced to the model. The model
// is expected to narrate it; it is never shown raw to the end user.
type ErrorPayload struct {
	Error   string `json:"error"`
	Skipped bool   `json:"skipped,omitempty"`
}

// PayloadJSON renders the payload for a tool history message.
func (r Result) PayloadJSON() string {
	b, err := json.Marshal(r.Payload)
	if err != nil {
		return `{"error":"unencodable tool result"}`
	}
	return string(b)
}

type handler func(args map[string]any) (any, error)

// Registry maps tool names to calculators and owns argument validation.
type Registry struct {
	defs     []Definition
	handlers map[string]handler
}

// NewRegistry builds the fixed four-tool registry.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]handler)}

	r.register(Definition{
		Name: "calculate_emi",
		Description: "Calculate the Equated Monthly Installment (EMI) for a mortgage loan. " +
			"Use this for any calculation involving loan amounts, interest rates and tenure; never calculate manually.",
		Parameters: map[string]Param{
			"loan_amount":   {Type: TypeNumber, Description: "Principal loan amount in AED"},
			"interest_rate": {Type: TypeNumber, Description: "Annual interest rate in percent, e.g. 4.5. Defaults to 4.5 for the UAE market."},
			"tenure_years":  {Type: TypeInteger, Description: "Loan tenure in years, 25 maximum"},
		},
		Required: []string{"loan_amount", "tenure_years"},
	}, func(args map[string]any) (any, error) {
		in, err := decodeArgs[calc.EMIInput](args)
		if err != nil {
			return nil, err
		}
		if _, ok := args["interest_rate"]; !ok {
			in.InterestRate = calc.DefaultInterestRate
		}
		return calc.EMI(in)
	})

	r.register(Definition{
		Name: "check_ltv",
		Description: "Check the loan-to-value (LTV) ratio against the 80% maximum for UAE expats. " +
			"Use this when the user mentions a property price and down payment.",
		Parameters: map[string]Param{
			"property_price": {Type: TypeNumber, Description: "Total property price in AED, must be positive"},
			"down_payment":   {Type: TypeNumber, Description: "Down payment amount in AED"},
		},
		Required: []string{"property_price", "down_payment"},
	}, func(args map[string]any) (any, error) {
		in, err := decodeArgs[calc.LTVInput](args)
		if err != nil {
			return nil, err
		}
		return calc.LTV(in)
	})

	r.register(Definition{
		Name: "calculate_upfront_costs",
		Description: "Calculate upfront property purchase costs in the UAE " +
			"(7% total: 4% transfer fee, 2% agency fee, 1% miscellaneous).",
		Parameters: map[string]Param{
			"property_price": {Type: TypeNumber, Description: "Total property price in AED, must be positive"},
		},
		Required: []string{"property_price"},
	}, func(args map[string]any) (any, error) {
		in, err := decodeArgs[calc.UpfrontCostsInput](args)
		if err != nil {
			return nil, err
		}
		return calc.UpfrontCosts(in)
	})

	r.register(Definition{
		Name: "buy_vs_rent_analysis",
		Description: "Analyze whether buying or renting suits the user's situation. " +
			"Requires complete data: monthly rent, property price, planned stay, income and down payment.",
		Parameters: map[string]Param{
			"monthly_rent":   {Type: TypeNumber, Description: "Current monthly rent in AED, must be positive"},
			"property_price": {Type: TypeNumber, Description: "Property price in AED, must be positive"},
			"stay_years":     {Type: TypeInteger, Description: "Planned stay in the property, in years"},
			"income":         {Type: TypeNumber, Description: "Monthly income in AED, must be positive"},
			"down_payment":   {Type: TypeNumber, Description: "Available down payment in AED"},
			"interest_rate":  {Type: TypeNumber, Description: "Annual interest rate in percent, defaults to 4.5"},
		},
		Required: []string{"monthly_rent", "property_price", "stay_years", "income", "down_payment"},
	}, func(args map[string]any) (any, error) {
		in, err := decodeArgs[calc.BuyVsRentInput](args)
		if err != nil {
			return nil, err
		}
		return calc.BuyVsRent(in)
	})

	return r
}

func (r *Registry) register(def Definition, h handler) {
	r.defs = append(r.defs, def)
	r.handlers[def.Name] = h
}

// Definitions returns the fixed tool set, in registration order.
func (r *Registry) Definitions() []Definition {
	return r.defs
}

// Execute validates rawArgs against the named tool's schema and runs the
// calculator. All outcomes are data: unknown tools and validation failures
// come back as skipped error payloads, calculator rejections as executed
// error payloads. Execute never returns an error to the caller.
func (r *Registry) Execute(name, rawArgs string) Result {
	h, ok := r.handlers[name]
	if !ok {
		return Result{
			Payload: ErrorPayload{Error: fmt.Sprintf("unsupported tool: %s", name), Skipped: true},
			Skipped: true,
		}
	}

	args := parseArgs(rawArgs)
	CoerceNumbers(args)

	def := r.definition(name)
	if field, reason := validate(def, args); field != "" {
		return Result{
			Payload: ErrorPayload{Error: fmt.Sprintf("%s: %s", field, reason), Skipped: true},
			Skipped: true,
		}
	}

	payload, err := h(args)
	if err != nil {
		var verr *calc.ValidationError
		if errors.As(err, &verr) {
			return Result{Payload: ErrorPayload{Error: verr.Error()}}
		}
		return Result{Payload: ErrorPayload{Error: err.Error()}}
	}
	return Result{Payload: payload}
}

func (r *Registry) definition(name string) Definition {
	for _, d := range r.defs {
		if d.Name == name {
			return d
		}
	}
	return Definition{}
}

// parseArgs tolerates empty or malformed argument JSON by treating it as an
// empty object, so missing-field validation produces the useful message.
func parseArgs(raw string) map[string]any {
	args := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// CoerceNumbers converts numeric strings in place ("50000" becomes the
// number 50000), recursing into nested objects. Genuinely non-numeric
// strings are left untouched. Some providers quote numeric arguments.
func CoerceNumbers(args map[string]any) {
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				args[k] = n
			}
		case map[string]any:
			CoerceNumbers(val)
		}
	}
}

// validate checks required fields and declared types; it returns the first
// violated field and the reason, or "" when the arguments are acceptable.
func validate(def Definition, args map[string]any) (field, reason string) {
	for _, req := range def.Required {
		if _, ok := args[req]; !ok {
			return req, "missing required parameter"
		}
	}

	for name, p := range def.Parameters {
		v, ok := args[name]
		if !ok {
			continue
		}
		switch p.Type {
		case TypeNumber:
			if _, ok := v.(float64); !ok {
				return name, fmt.Sprintf("expected a number, got %T", v)
			}
		case TypeInteger:
			f, ok := v.(float64)
			if !ok {
				return name, fmt.Sprintf("expected an integer, got %T", v)
			}
			if f != math.Trunc(f) {
				return name, fmt.Sprintf("expected an integer, got %v", f)
			}
		case TypeString:
			if _, ok := v.(string); !ok {
				return name, fmt.Sprintf("expected a string, got %T", v)
			}
		}
	}
	return "", ""
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var v T
	b, err := json.Marshal(args)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode arguments: %w", err)
	}
	return v, nil
}
