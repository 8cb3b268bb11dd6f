package goalcast

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
)

// rawColumnMap renames the historical CSV host's column names to the
// canonical ledger schema
var rawColumnMap = map[string]string{
	"FTHG":     "home_goals",
	"FTAG":     "away_goals",
	"B365H":    "home_odds",
	"B365D":    "draw_odds",
	"B365A":    "away_odds",
	"Date":     "date",
	"HomeTeam": "home_team",
	"AwayTeam": "away_team",
	"FTR":      "FTR",
}

// rawDateLayouts are tried in order. The historical host writes day-first
// dates, in four and two digit year variants
var rawDateLayouts = []string{
	"02/01/2006",
	"02/01/06",
}

func parseRawDate(s string) (time.Time, error) {
	for _, layout := range rawDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// rawRow is one historical CSV row after column renaming, before enrichment
type rawRow struct {
	date      time.Time
	homeTeam  string
	awayTeam  string
	homeGoals int
	awayGoals int
	homeOdds  float64
	drawOdds  float64
	awayOdds  float64
	ftr       string
}

// parseRawFile reads one raw per-league CSV into rows, dropping individual
// rows with unparseable dates or goals
func parseRawFile(path string) ([]rawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // the host pads trailing columns inconsistently

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	// Build a canonical-name -> column-index map from the header
	index := map[string]int{}
	for i, name := range rows[0] {
		canonical, ok := rawColumnMap[strings.TrimSpace(name)]
		if !ok {
			continue
		}
		index[canonical] = i
	}
	for _, required := range []string{"date", "home_team", "away_team", "home_goals", "away_goals"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %s in %s", required, path)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	parsed := make([]rawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, err := parseRawDate(field(row, "date"))
		if err != nil {
			metrics.Default().RecordDroppedRow("bad_date")
			continue
		}

		homeGoals, err1 := strconv.Atoi(field(row, "home_goals"))
		awayGoals, err2 := strconv.Atoi(field(row, "away_goals"))
		if err1 != nil || err2 != nil {
			metrics.Default().RecordDroppedRow("bad_goals")
			continue
		}

		r := rawRow{
			date:      date,
			homeTeam:  field(row, "home_team"),
			awayTeam:  field(row, "away_team"),
			homeGoals: homeGoals,
			awayGoals: awayGoals,
			ftr:       field(row, "FTR"),
		}
		if r.homeTeam == "" || r.awayTeam == "" {
			metrics.Default().RecordDroppedRow("missing_team")
			continue
		}

		// Odds columns are patchy in older seasons. Neutral defaults keep
		// the row usable for form and h2h purposes
		r.homeOdds = parseOddsField(field(row, "home_odds"), Config.NeutralHomeOdds)
		r.drawOdds = parseOddsField(field(row, "draw_odds"), Config.NeutralDrawOdds)
		r.awayOdds = parseOddsField(field(row, "away_odds"), Config.NeutralAwayOdds)

		if r.ftr == "" {
			r.ftr = deriveResult(homeGoals, awayGoals)
		}

		parsed = append(parsed, r)
	}
	return parsed, nil
}

func parseOddsField(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 1.0 {
		return fallback
	}
	return v
}

func deriveResult(homeGoals, awayGoals int) string {
	switch {
	case homeGoals > awayGoals:
		return "H"
	case awayGoals > homeGoals:
		return "A"
	default:
		return "D"
	}
}

// RebuildLedger processes every raw per-league CSV under the configured raw
// data directory into the enriched ledger, replacing it wholesale. Files
// that cannot be parsed are logged and skipped; the rebuild fails only when
// no file yields usable rows
func RebuildLedger() error {
	start := time.Now()

	files, err := filepath.Glob(filepath.Join(Config.RawDataPath, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to list raw data dir: %w", err)
	}
	if len(files) == 0 {
		metrics.Default().RecordRebuild("failed", -1)
		return fmt.Errorf("no CSV files found in %s", Config.RawDataPath)
	}

	var all []rawRow
	usable := 0
	for _, file := range files {
		rows, err := parseRawFile(file)
		if err != nil {
			logger.Warn("Error processing", filepath.Base(file), err)
			continue
		}
		all = append(all, rows...)
		usable++
	}
	if usable == 0 {
		metrics.Default().RecordRebuild("failed", -1)
		return fmt.Errorf("no valid data found after processing %d files", len(files))
	}

	// Stable sort keeps same-day matches in source order
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].date.Before(all[j].date)
	})

	logger.Info("Calculating features for", len(all), "matches")
	ledger := enrich(all)

	if err := ledger.Save(Config.LedgerPath); err != nil {
		metrics.Default().RecordRebuild("failed", -1)
		return err
	}

	metrics.Default().RecordRebuild("ok", len(ledger.Records))
	logger.Info("Processed matches", len(ledger.Records), "in", time.Since(start).Seconds())
	return nil
}

// enrich computes form and head-to-head columns over date-sorted rows and
// produces the final ledger
func enrich(rows []rawRow) *Ledger {
	h2hRates := calculateH2H(rows)

	// Per-team rolling result history, split by role so home form only
	// reflects earlier home matches and likewise for away form
	homeHistory := map[string][]bool{}
	awayHistory := map[string][]bool{}

	ledger := &Ledger{Records: make([]MatchRecord, 0, len(rows))}
	for _, r := range rows {
		rec := MatchRecord{
			Date:      r.date,
			HomeTeam:  r.homeTeam,
			AwayTeam:  r.awayTeam,
			HomeGoals: r.homeGoals,
			AwayGoals: r.awayGoals,
			HomeOdds:  r.homeOdds,
			DrawOdds:  r.drawOdds,
			AwayOdds:  r.awayOdds,
			FTR:       r.ftr,
			HomeForm:  trailingWinRate(homeHistory[r.homeTeam]),
			AwayForm:  trailingWinRate(awayHistory[r.awayTeam]),
			H2HKey:    H2HKey(r.homeTeam, r.awayTeam),
		}
		rec.H2HRate = h2hRates[rec.H2HKey]
		ledger.Records = append(ledger.Records, rec)

		homeHistory[r.homeTeam] = append(homeHistory[r.homeTeam], r.homeGoals > r.awayGoals)
		awayHistory[r.awayTeam] = append(awayHistory[r.awayTeam], r.awayGoals > r.homeGoals)
	}
	return ledger
}

// trailingWinRate is the win fraction over the most recent matches in
// history, up to the configured window. History holds only matches strictly
// before the current one, so there is no lookahead. No history at all gives
// the neutral value
func trailingWinRate(history []bool) float64 {
	if len(history) == 0 {
		return Config.NeutralForm
	}
	window := GetFormWindow()
	if len(history) > window {
		history = history[len(history)-window:]
	}
	wins := 0
	for _, won := range history {
		if won {
			wins++
		}
	}
	return float64(wins) / float64(len(history))
}

// calculateH2H computes, for every unordered team pair, the home win rate of
// the pair's canonical perspective team over the pair's full history. Pairs
// where the perspective team never played at home get the neutral value
func calculateH2H(rows []rawRow) map[string]float64 {
	type tally struct {
		homeMatches int
		homeWins    int
	}
	tallies := map[string]*tally{}

	for _, r := range rows {
		key := H2HKey(r.homeTeam, r.awayTeam)
		t, ok := tallies[key]
		if !ok {
			t = &tally{}
			tallies[key] = t
		}
		if r.homeTeam == h2hHomePerspective(r.homeTeam, r.awayTeam) {
			t.homeMatches++
			if r.homeGoals > r.awayGoals {
				t.homeWins++
			}
		}
	}

	rates := make(map[string]float64, len(tallies))
	for key, t := range tallies {
		if t.homeMatches == 0 {
			rates[key] = Config.NeutralH2HRate
			continue
		}
		rates[key] = float64(t.homeWins) / float64(t.homeMatches)
	}
	return rates
}
