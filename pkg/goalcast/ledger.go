package goalcast

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// MatchRecord is one completed match in the enriched ledger. The ledger is
// rebuilt wholesale by the cleaner and is read-only to everything else
type MatchRecord struct {
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	HomeOdds  float64
	DrawOdds  float64
	AwayOdds  float64
	FTR       string // full-time result: H, D or A
	HomeForm  float64
	AwayForm  float64
	H2HKey    string
	H2HRate   float64
}

// H2HKey builds the canonical unordered-pair key for two teams. Both
// orderings of the same pair yield the same key
func H2HKey(a, b string) string {
	if a <= b {
		return a + "|" + b
	}
	return b + "|" + a
}

// h2hHomePerspective returns the team whose wins define the stored pair
// rate: the lexicographically first of the pair
func h2hHomePerspective(a, b string) string {
	if a <= b {
		return a
	}
	return b
}

// ledgerHeader is the canonical column order of the ledger CSV
var ledgerHeader = []string{
	"date", "home_team", "away_team",
	"home_goals", "away_goals",
	"home_odds", "draw_odds", "away_odds",
	"FTR",
	"home_form", "away_form",
	"h2h_key", "h2h_win_rate",
}

const ledgerDateLayout = "2006-01-02"

// Ledger is the in-memory enriched match history, ordered by date ascending
type Ledger struct {
	Records []MatchRecord
}

// LoadLedger reads the enriched ledger CSV from path
func LoadLedger(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(ledgerHeader)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}
	if len(rows) == 0 {
		return &Ledger{}, nil
	}

	ledger := &Ledger{Records: make([]MatchRecord, 0, len(rows)-1)}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec, err := parseLedgerRow(row)
		if err != nil {
			return nil, fmt.Errorf("bad ledger row %d in %s: %w", i+1, path, err)
		}
		ledger.Records = append(ledger.Records, rec)
	}
	return ledger, nil
}

func parseLedgerRow(row []string) (MatchRecord, error) {
	var rec MatchRecord
	var err error

	rec.Date, err = time.Parse(ledgerDateLayout, row[0])
	if err != nil {
		return rec, fmt.Errorf("bad date %q: %w", row[0], err)
	}
	rec.HomeTeam = row[1]
	rec.AwayTeam = row[2]

	rec.HomeGoals, err = strconv.Atoi(row[3])
	if err != nil {
		return rec, fmt.Errorf("bad home goals %q: %w", row[3], err)
	}
	rec.AwayGoals, err = strconv.Atoi(row[4])
	if err != nil {
		return rec, fmt.Errorf("bad away goals %q: %w", row[4], err)
	}

	rec.HomeOdds, err = strconv.ParseFloat(row[5], 64)
	if err != nil {
		return rec, fmt.Errorf("bad home odds %q: %w", row[5], err)
	}
	rec.DrawOdds, err = strconv.ParseFloat(row[6], 64)
	if err != nil {
		return rec, fmt.Errorf("bad draw odds %q: %w", row[6], err)
	}
	rec.AwayOdds, err = strconv.ParseFloat(row[7], 64)
	if err != nil {
		return rec, fmt.Errorf("bad away odds %q: %w", row[7], err)
	}

	rec.FTR = row[8]

	rec.HomeForm, err = strconv.ParseFloat(row[9], 64)
	if err != nil {
		return rec, fmt.Errorf("bad home form %q: %w", row[9], err)
	}
	rec.AwayForm, err = strconv.ParseFloat(row[10], 64)
	if err != nil {
		return rec, fmt.Errorf("bad away form %q: %w", row[10], err)
	}

	rec.H2HKey = row[11]
	rec.H2HRate, err = strconv.ParseFloat(row[12], 64)
	if err != nil {
		return rec, fmt.Errorf("bad h2h rate %q: %w", row[12], err)
	}
	return rec, nil
}

// Save writes the ledger wholesale to path, replacing whatever was there
func (l *Ledger) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(ledgerHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}

	for _, rec := range l.Records {
		row := []string{
			rec.Date.Format(ledgerDateLayout),
			rec.HomeTeam,
			rec.AwayTeam,
			strconv.Itoa(rec.HomeGoals),
			strconv.Itoa(rec.AwayGoals),
			formatFloat(rec.HomeOdds),
			formatFloat(rec.DrawOdds),
			formatFloat(rec.AwayOdds),
			rec.FTR,
			formatFloat(rec.HomeForm),
			formatFloat(rec.AwayForm),
			rec.H2HKey,
			formatFloat(rec.H2HRate),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Winner returns which team won the match, or "" for a draw
func (m *MatchRecord) Winner() string {
	switch {
	case m.HomeGoals > m.AwayGoals:
		return m.HomeTeam
	case m.AwayGoals > m.HomeGoals:
		return m.AwayTeam
	default:
		return ""
	}
}
