package bundle

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlg0/agent-zero/internal/sim"
)

var timeseriesCols = []string{
	"year", "region", "commodity", "price", "demand", "supply",
	"emissions", "shortage", "scenario_id", "assumptions_id", "run_id",
}

var agentStateCols = []string{
	"year", "agent_id", "agent_type", "region", "sector", "tech",
	"capacity", "investment", "expected_price", "action", "cash",
	"horizon", "vintage", "cum_investment", "cum_emissions", "neg_npv_streak",
}

// TimeseriesRecord is one parsed timeseries.csv row, run identifiers
// included.
type TimeseriesRecord struct {
	Year          int     `json:"year"`
	Region        string  `json:"region"`
	Commodity     string  `json:"commodity"`
	Price         float64 `json:"price"`
	Demand        float64 `json:"demand"`
	Supply        float64 `json:"supply"`
	Emissions     float64 `json:"emissions"`
	Shortage      bool    `json:"shortage"`
	ScenarioID    string  `json:"scenario_id"`
	AssumptionsID string  `json:"assumptions_id"`
	RunID         string  `json:"run_id"`
}

// AgentRecord is one parsed agent_states.csv row.
type AgentRecord struct {
	Year          int      `json:"year"`
	AgentID       string   `json:"agent_id"`
	AgentType     string   `json:"agent_type"`
	Region        string   `json:"region"`
	Sector        string   `json:"sector,omitempty"`
	Tech          string   `json:"tech,omitempty"`
	Capacity      float64  `json:"capacity"`
	Investment    float64  `json:"investment"`
	ExpectedPrice *float64 `json:"expected_price"`
	Action        string   `json:"action"`
	Cash          float64  `json:"cash"`
	Horizon       int      `json:"horizon"`
	Vintage       int      `json:"vintage,omitempty"`
	CumInvestment float64  `json:"cum_investment"`
	CumEmissions  float64  `json:"cum_emissions"`
	NegNPVStreak  int      `json:"neg_npv_streak"`
}

func writeTimeseriesCSV(path string, info sim.RunInfo, rows []sim.TimeseriesRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(timeseriesCols); err != nil {
		return err
	}
	scenID := ""
	if info.Scenario != nil {
		scenID = info.Scenario.ID
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Year),
			r.Region,
			r.Commodity,
			fmtFloat(r.Price),
			fmtFloat(r.Demand),
			fmtFloat(r.Supply),
			fmtFloat(r.Emissions),
			strconv.FormatBool(r.Shortage),
			scenID,
			info.Assumptions.ID,
			info.RunID,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeAgentStatesCSV(path string, rows []sim.AgentRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(agentStateCols); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Year),
			r.AgentID,
			r.AgentType,
			r.Region,
			r.Extra.Sector,
			r.Extra.Tech,
			fmtFloat(r.Capacity),
			fmtFloat(r.Investment),
			fmtOptFloat(r.ExpectedPrice),
			string(r.Action),
			fmtFloat(r.Extra.Cash),
			strconv.Itoa(r.Extra.Horizon),
			strconv.Itoa(r.Extra.Vintage),
			fmtFloat(r.Extra.CumInvestment),
			fmtFloat(r.Extra.CumEmissions),
			strconv.Itoa(r.Extra.NegNPVStreak),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func fmtOptFloat(x *float64) string {
	if x == nil {
		return ""
	}
	return fmtFloat(*x)
}

// csvFile is a parsed CSV with named-column access.
type csvFile struct {
	path string
	cols map[string]int
	rows [][]string
}

func readCSV(path string) (*csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &csvFile{path: path, cols: map[string]int{}}
	if len(all) == 0 {
		return t, nil
	}
	for i, name := range all[0] {
		t.cols[strings.TrimSpace(name)] = i
	}
	t.rows = all[1:]
	return t, nil
}

func (t *csvFile) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *csvFile) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *csvFile) getFloat(rec []string, line int, col string) (float64, error) {
	s := t.get(rec, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %q is not a number", t.path, line, col, s)
	}
	return v, nil
}

func (t *csvFile) getInt(rec []string, line int, col string) (int, error) {
	s := t.get(rec, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %q is not an integer", t.path, line, col, s)
	}
	return v, nil
}

// ReadTimeseries loads a bundle's timeseries.csv into typed records.
func ReadTimeseries(runDir string) ([]TimeseriesRecord, error) {
	t, err := readCSV(filepath.Join(runDir, "timeseries.csv"))
	if err != nil {
		return nil, err
	}
	out := make([]TimeseriesRecord, 0, len(t.rows))
	for n, rec := range t.rows {
		line := n + 2
		year, err := t.getInt(rec, line, "year")
		if err != nil {
			return nil, err
		}
		price, err := t.getFloat(rec, line, "price")
		if err != nil {
			return nil, err
		}
		demand, err := t.getFloat(rec, line, "demand")
		if err != nil {
			return nil, err
		}
		supply, err := t.getFloat(rec, line, "supply")
		if err != nil {
			return nil, err
		}
		emissions, err := t.getFloat(rec, line, "emissions")
		if err != nil {
			return nil, err
		}
		out = append(out, TimeseriesRecord{
			Year:          year,
			Region:        t.get(rec, "region"),
			Commodity:     t.get(rec, "commodity"),
			Price:         price,
			Demand:        demand,
			Supply:        supply,
			Emissions:     emissions,
			Shortage:      t.get(rec, "shortage") == "true",
			ScenarioID:    t.get(rec, "scenario_id"),
			AssumptionsID: t.get(rec, "assumptions_id"),
			RunID:         t.get(rec, "run_id"),
		})
	}
	return out, nil
}

// ReadAgentStates loads a bundle's agent_states.csv into typed records.
func ReadAgentStates(runDir string) ([]AgentRecord, error) {
	t, err := readCSV(filepath.Join(runDir, "agent_states.csv"))
	if err != nil {
		return nil, err
	}
	out := make([]AgentRecord, 0, len(t.rows))
	for n, rec := range t.rows {
		line := n + 2
		year, err := t.getInt(rec, line, "year")
		if err != nil {
			return nil, err
		}
		capacity, err := t.getFloat(rec, line, "capacity")
		if err != nil {
			return nil, err
		}
		investment, err := t.getFloat(rec, line, "investment")
		if err != nil {
			return nil, err
		}
		cash, err := t.getFloat(rec, line, "cash")
		if err != nil {
			return nil, err
		}
		horizon, err := t.getInt(rec, line, "horizon")
		if err != nil {
			return nil, err
		}
		vintage, err := t.getInt(rec, line, "vintage")
		if err != nil {
			return nil, err
		}
		cumInv, err := t.getFloat(rec, line, "cum_investment")
		if err != nil {
			return nil, err
		}
		cumEm, err := t.getFloat(rec, line, "cum_emissions")
		if err != nil {
			return nil, err
		}
		streak, err := t.getInt(rec, line, "neg_npv_streak")
		if err != nil {
			return nil, err
		}
		var expected *float64
		if s := t.get(rec, "expected_price"); s != "" {
			v, err := t.getFloat(rec, line, "expected_price")
			if err != nil {
				return nil, err
			}
			expected = &v
		}
		out = append(out, AgentRecord{
			Year:          year,
			AgentID:       t.get(rec, "agent_id"),
			AgentType:     t.get(rec, "agent_type"),
			Region:        t.get(rec, "region"),
			Sector:        t.get(rec, "sector"),
			Tech:          t.get(rec, "tech"),
			Capacity:      capacity,
			Investment:    investment,
			ExpectedPrice: expected,
			Action:        t.get(rec, "action"),
			Cash:          cash,
			Horizon:       horizon,
			Vintage:       vintage,
			CumInvestment: cumInv,
			CumEmissions:  cumEm,
			NegNPVStreak:  streak,
		})
	}
	return out, nil
}
