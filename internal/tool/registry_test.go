package tool

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/smartfriend/mortgage-advisor/internal/calc"
)

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_stamp_duty", `{"property_price": 100}`)
	if !res.Skipped {
		t.Error("unknown tool should be marked skipped")
	}
	p, ok := res.Payload.(ErrorPayload)
	if !ok {
		t.Fatalf("payload = %T, want ErrorPayload", res.Payload)
	}
	if !strings.Contains(p.Error, "unsupported tool") {
		t.Errorf("error = %q, want unsupported tool message", p.Error)
	}
}

func TestExecuteCoercesNumericStrings(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_emi", `{"loan_amount": "1600000", "interest_rate": "4.5", "tenure_years": "25"}`)
	if res.Skipped {
		t.Fatalf("coercible string arguments should execute, got payload %+v", res.Payload)
	}
	out, ok := res.Payload.(*calc.EMIResult)
	if !ok {
		t.Fatalf("payload = %T, want *calc.EMIResult", res.Payload)
	}
	if out.LoanAmount != 1_600_000 || out.TenureYears != 25 {
		t.Errorf("decoded arguments wrong: %+v", out)
	}
}

func TestExecuteRejectsNonNumericString(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_emi", `{"loan_amount": "a lot", "tenure_years": 10}`)
	if !res.Skipped {
		t.Error("non-numeric loan_amount should be skipped")
	}
	p := res.Payload.(ErrorPayload)
	if !strings.Contains(p.Error, "loan_amount") {
		t.Errorf("error = %q, want violated field named", p.Error)
	}
}

func TestExecuteMissingRequired(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("check_ltv", `{"property_price": 2000000}`)
	if !res.Skipped {
		t.Error("missing required parameter should be skipped")
	}
	p := res.Payload.(ErrorPayload)
	if !strings.Contains(p.Error, "down_payment") {
		t.Errorf("error = %q, want down_payment named", p.Error)
	}
}

func TestExecuteNonIntegralInteger(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_emi", `{"loan_amount": 100000, "tenure_years": 12.5}`)
	if !res.Skipped {
		t.Error("fractional tenure_years should be skipped")
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_upfront_costs", `{"property_price":`)
	if !res.Skipped {
		t.Error("malformed argument JSON should surface as missing required parameter")
	}
}

func TestExecuteCalculatorErrorIsPayload(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_emi", `{"loan_amount": -5, "tenure_years": 10}`)
	if res.Skipped {
		t.Error("in-range types with invalid domain values should execute, not skip")
	}
	p, ok := res.Payload.(ErrorPayload)
	if !ok {
		t.Fatalf("payload = %T, want ErrorPayload", res.Payload)
	}
	if !strings.Contains(p.Error, "loan_amount") {
		t.Errorf("error = %q, want loan_amount named", p.Error)
	}
}

func TestExecuteDefaultInterestRate(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("calculate_emi", `{"loan_amount": 1000000, "tenure_years": 20}`)
	out, ok := res.Payload.(*calc.EMIResult)
	if !ok {
		t.Fatalf("payload = %T, want *calc.EMIResult", res.Payload)
	}
	if out.InterestRate != calc.DefaultInterestRate {
		t.Errorf("InterestRate = %v, want default %v", out.InterestRate, calc.DefaultInterestRate)
	}
}

func TestPayloadJSONRoundTrips(t *testing.T) {
	r := NewRegistry()

	res := r.Execute("check_ltv", `{"property_price": 2000000, "down_payment": 400000}`)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(res.PayloadJSON()), &decoded); err != nil {
		t.Fatalf("payload JSON invalid: %v", err)
	}
	if valid, _ := decoded["is_valid"].(bool); !valid {
		t.Errorf("payload = %s, want is_valid true", res.PayloadJSON())
	}
}

func TestDefinitionsSchemaShape(t *testing.T) {
	r := NewRegistry()

	defs := r.Definitions()
	if len(defs) != 4 {
		t.Fatalf("tool count = %d, want 4", len(defs))
	}

	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
		schema := d.Schema()
		if schema["type"] != "object" {
			t.Errorf("%s: schema type = %v, want object", d.Name, schema["type"])
		}
		props := schema["properties"].(map[string]any)
		for _, req := range d.Required {
			if _, ok := props[req]; !ok {
				t.Errorf("%s: required %q not declared in properties", d.Name, req)
			}
		}
	}
	for _, want := range []string{"calculate_emi", "check_ltv", "calculate_upfront_costs", "buy_vs_rent_analysis"} {
		if !names[want] {
			t.Errorf("tool %q missing from registry", want)
		}
	}
}
