package goalcast

import (
	"fmt"
	"sort"
	"time"
)

// FeatureNames is the single authoritative definition of the model input
// vector: its order and its dimensionality. The builder emits vectors in
// this order and the inference adapter validates against it at load time.
// Changing this list is a model-retraining event
var FeatureNames = []string{
	"home_odds",
	"away_odds",
	"draw_odds",
	"home_form",
	"away_form",
	"h2h_win_rate",
}

// FeatureCount is the required length of every feature vector
var FeatureCount = len(FeatureNames)

// Role distinguishes which side of a fixture a team is on
type Role int

const (
	RoleHome Role = iota
	RoleAway
)

// FeatureBuilder derives model inputs from the enriched ledger. The ledger
// is read-only here; the cleaner owns writing it
type FeatureBuilder struct {
	ledger *Ledger
}

// NewFeatureBuilder wraps a loaded ledger
func NewFeatureBuilder(ledger *Ledger) *FeatureBuilder {
	return &FeatureBuilder{ledger: ledger}
}

// priorMatches returns the team's matches in the given role strictly before
// asOf, most recent first, capped at the form window. Matches dated exactly
// asOf are excluded: the match being predicted must never see itself
func (b *FeatureBuilder) priorMatches(team string, role Role, asOf time.Time) []MatchRecord {
	var prior []MatchRecord
	for _, rec := range b.ledger.Records {
		if !rec.Date.Before(asOf) {
			continue
		}
		if role == RoleHome && rec.HomeTeam != team {
			continue
		}
		if role == RoleAway && rec.AwayTeam != team {
			continue
		}
		prior = append(prior, rec)
	}
	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].Date.After(prior[j].Date)
	})
	window := GetFormWindow()
	if len(prior) > window {
		prior = prior[:window]
	}
	return prior
}

// GetForm is the team's win fraction over its trailing matches in the given
// role strictly before asOf. A team with no qualifying history gets the
// neutral value
func (b *FeatureBuilder) GetForm(team string, role Role, asOf time.Time) float64 {
	recent := b.priorMatches(team, role, asOf)
	if len(recent) == 0 {
		return Config.NeutralForm
	}
	wins := 0
	for _, rec := range recent {
		if rec.Winner() == team {
			wins++
		}
	}
	return float64(wins) / float64(len(recent))
}

// GetH2HRate is the queried home team's win fraction over the pair's
// trailing matches strictly before asOf, counting wins in either venue.
// Pairs with no prior meetings get the neutral value
func (b *FeatureBuilder) GetH2HRate(homeTeam, awayTeam string, asOf time.Time) float64 {
	key := H2HKey(homeTeam, awayTeam)

	var prior []MatchRecord
	for _, rec := range b.ledger.Records {
		if rec.H2HKey != key {
			continue
		}
		if !rec.Date.Before(asOf) {
			continue
		}
		prior = append(prior, rec)
	}
	if len(prior) == 0 {
		return Config.NeutralH2HRate
	}

	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].Date.After(prior[j].Date)
	})
	window := GetFormWindow()
	if len(prior) > window {
		prior = prior[:window]
	}

	homeWins := 0
	for _, rec := range prior {
		if rec.Winner() == homeTeam {
			homeWins++
		}
	}
	return float64(homeWins) / float64(len(prior))
}

// BuildFeatures assembles the model input vector for a fixture: market odds
// from the supplied odds events (neutral defaults when unpriced) and
// ledger-derived form and head-to-head features as of kickoff. The returned
// vector always has exactly FeatureCount elements in FeatureNames order
func (b *FeatureBuilder) BuildFeatures(fixture Fixture, events []OddsEvent) ([]float64, error) {
	odds := LiveOdds(events, fixture.Home, fixture.Away)

	features := []float64{
		odds.Home,
		odds.Away,
		odds.Draw,
		b.GetForm(fixture.Home, RoleHome, fixture.Kickoff),
		b.GetForm(fixture.Away, RoleAway, fixture.Kickoff),
		b.GetH2HRate(fixture.Home, fixture.Away, fixture.Kickoff),
	}

	if len(features) != FeatureCount {
		return nil, fmt.Errorf("built %d features for %s v %s, schema requires %d",
			len(features), fixture.Home, fixture.Away, FeatureCount)
	}
	return features, nil
}
