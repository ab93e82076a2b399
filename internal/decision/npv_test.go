package decision

import (
	"math"
	"testing"

	"github.com/dlg0/agent-zero/internal/agent"
)

func producerAgent(capacity float64, streak int) agent.Agent {
	return agent.Agent{
		Config: agent.Config{
			ID: "EGEN1", Type: "ElectricityProducer", Region: "AUS",
			Tech: "electricity", InitialCapacity: 100,
			Horizon: 1, DiscountRate: 0.07, Vintage: 2024,
			Rule: agent.RuleNPVThreshold,
			Producer: &agent.ProducerParams{
				Commodity:         "electricity",
				InvestStep:        10,
				MaxCapacity:       1000,
				PersistenceWindow: 2,
			},
		},
		State: agent.State{Capacity: capacity, NegNPVStreak: streak},
	}
}

// Two-year walkthrough: a rising expected price triggers an investment,
// the following soft year holds capacity where it is.
func TestNPVThresholdInvestThenHold(t *testing.T) {
	econ := Economics{Capex: 40, Opex: 10}

	// Year 2024: price 60, expected 65.5. NPV = 55.5/1.07 - 40 > 0.
	p := NPVThreshold{}.Decide(Context{
		Year:     2024,
		Agent:    producerAgent(100, 0),
		Price:    60,
		Forecast: []float64{65.5},
		Econ:     econ,
	})
	if p.Action != ActionInvest {
		t.Fatalf("2024 action = %s, want invest", p.Action)
	}
	if p.Invest != 10 || p.Supply != 110 {
		t.Errorf("2024 invest = %v supply = %v, want 10 / 110", p.Invest, p.Supply)
	}
	if p.ExpectedPrice == nil || *p.ExpectedPrice != 65.5 {
		t.Errorf("2024 expected price = %v, want 65.5", p.ExpectedPrice)
	}
	if p.NPVNegative {
		t.Error("operating NPV flagged negative in a profitable year")
	}

	// Year 2025: price 55, expected 52. Invest NPV < 0, operating NPV
	// still positive, so no retirement either.
	p = NPVThreshold{}.Decide(Context{
		Year:     2025,
		Agent:    producerAgent(110, 0),
		Price:    55,
		Forecast: []float64{52},
		Econ:     econ,
	})
	if p.Action != ActionHold {
		t.Fatalf("2025 action = %s, want hold", p.Action)
	}
	if p.Invest != 0 || p.Retire != 0 || p.Supply != 110 {
		t.Errorf("2025 invest/retire/supply = %v/%v/%v, want 0/0/110", p.Invest, p.Retire, p.Supply)
	}
}

func TestNPVThresholdHeadroomBlocksInvest(t *testing.T) {
	ag := producerAgent(995, 0) // step of 10 does not fit under 1000
	p := NPVThreshold{}.Decide(Context{
		Agent:    ag,
		Price:    60,
		Forecast: []float64{200},
		Econ:     Economics{Capex: 10, Opex: 0},
	})
	if p.Action != ActionHold {
		t.Errorf("action = %s, want hold when the full step does not fit", p.Action)
	}
	if got := *p.Inputs.CapacityHeadroom; got != 5 {
		t.Errorf("headroom = %v, want 5", got)
	}
}

func TestNPVThresholdRetirePersistence(t *testing.T) {
	// Opex above price makes the operating NPV negative.
	ctx := Context{
		Price:    20,
		Forecast: []float64{20},
		Econ:     Economics{Capex: 40, Opex: 50},
	}

	tests := []struct {
		name   string
		streak int
		want   Action
	}{
		{"first negative year holds", 0, ActionHold},
		{"second negative year holds", 1, ActionHold},
		{"third negative year retires", 2, ActionRetire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx.Agent = producerAgent(100, tt.streak)
			p := NPVThreshold{}.Decide(ctx)
			if p.Action != tt.want {
				t.Fatalf("action = %s, want %s", p.Action, tt.want)
			}
			if !p.NPVNegative {
				t.Error("NPVNegative not flagged")
			}
			if tt.want == ActionRetire && (p.Retire != 10 || p.Supply != 90) {
				t.Errorf("retire/supply = %v/%v, want 10/90", p.Retire, p.Supply)
			}
		})
	}
}

func TestNPVThresholdRetireClampsAtZero(t *testing.T) {
	ctx := Context{
		Agent:    producerAgent(4, 5),
		Price:    20,
		Forecast: []float64{20},
		Econ:     Economics{Capex: 40, Opex: 50},
	}
	p := NPVThreshold{}.Decide(ctx)
	if p.Retire != 4 || p.Supply != 0 {
		t.Errorf("retire/supply = %v/%v, want 4/0", p.Retire, p.Supply)
	}
}

func TestNPVThresholdEmissions(t *testing.T) {
	p := NPVThreshold{}.Decide(Context{
		Agent:       producerAgent(100, 0),
		Price:       60,
		Forecast:    []float64{65.5},
		Econ:        Economics{Capex: 40, Opex: 10, EmissionsIntensity: 0.8},
		CarbonPrice: 0,
	})
	want := p.Supply * 0.8
	if math.Abs(p.Emissions-want) > 1e-9 {
		t.Errorf("emissions = %v, want %v", p.Emissions, want)
	}
}

// A higher carbon price must never increase investment appetite.
func TestNPVThresholdCarbonPriceMonotone(t *testing.T) {
	base := Context{
		Agent:    producerAgent(100, 0),
		Price:    60,
		Forecast: []float64{65.5},
		Econ:     Economics{Capex: 40, Opex: 10, EmissionsIntensity: 0.8},
	}

	prevNPV := math.Inf(1)
	for _, carbon := range []float64{0, 10, 25, 50, 100} {
		ctx := base
		ctx.CarbonPrice = carbon
		p := NPVThreshold{}.Decide(ctx)
		if *p.Inputs.NPV > prevNPV {
			t.Fatalf("NPV rose from %v to %v when carbon price rose to %v", prevNPV, *p.Inputs.NPV, carbon)
		}
		prevNPV = *p.Inputs.NPV
	}
}
