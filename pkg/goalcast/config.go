package goalcast

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GoalcastConfig contains all configurable parameters that influence pipeline behaviour
// This centralizes all magic numbers and constants for easy adjustment
type GoalcastConfig struct {
	// Filesystem layout
	AssetsPath  string `yaml:"assets_path"`  // The base directory of assets relating to goalcast
	CachePath   string `yaml:"cache_path"`   // Where cached downloaded data is stored
	RawDataPath string `yaml:"raw_data_path"` // Where raw per-league historical CSVs land
	LedgerPath  string `yaml:"ledger_path"`  // The enriched match ledger CSV
	ModelsPath  string `yaml:"models_path"`  // Directory holding trained model dumps
	HistoryDb   string `yaml:"history_db"`   // The sqlite prediction history database

	// === API CREDENTIALS ===

	OddsApiKey     string `yaml:"odds_api_key"`     // The Odds API key (env ODDS_API_KEY wins)
	FixtureApiKey  string `yaml:"fixture_api_key"`  // API-Football key (env API_FOOTBALL_KEY wins)
	DiscordToken   string `yaml:"discord_token"`    // Bot token (env DISCORD_TOKEN wins)
	DiscordChannel string `yaml:"discord_channel"`  // Channel for scheduled announcements

	// === REMOTE ENDPOINTS ===

	OddsApiBaseUrl    string `yaml:"odds_api_base_url"`    // default: https://api.the-odds-api.com/v4
	FixtureApiBaseUrl string `yaml:"fixture_api_base_url"` // default: https://v3.football.api-sports.io
	HistoricalBaseUrl string `yaml:"historical_base_url"`  // default: https://www.football-data.co.uk

	// === ODDS REQUEST PARAMETERS ===

	OddsRegions string `yaml:"odds_regions"` // Bookmaker regions (default: "eu")
	OddsMarkets string `yaml:"odds_markets"` // Markets to request (default: "h2h")
	OddsFormat  string `yaml:"odds_format"`  // Price format (default: "decimal")

	// === STALENESS BOUNDS ===

	OddsMaxAgeHours   int `yaml:"odds_max_age_hours"`   // Cached odds validity window (default: 12)
	LeagueMaxAgeHours int `yaml:"league_max_age_hours"` // Active-league list validity window (default: 6)

	// === PACING ===

	InterCallDelaySeconds int `yaml:"inter_call_delay_seconds"` // Fixed pause between per-league calls (default: 1)

	// === FEATURE PARAMETERS ===

	FormWindow int `yaml:"form_window"` // Trailing matches used for form (default: 5)

	// Neutral values used when history or market data is absent
	NeutralForm     float64 `yaml:"neutral_form"`      // default: 0.5
	NeutralH2HRate  float64 `yaml:"neutral_h2h_rate"`  // default: 0.5
	NeutralHomeOdds float64 `yaml:"neutral_home_odds"` // default: 2.5
	NeutralDrawOdds float64 `yaml:"neutral_draw_odds"` // default: 3.2
	NeutralAwayOdds float64 `yaml:"neutral_away_odds"` // default: 2.8

	// === MODEL MONITOR ===

	AccuracyThreshold float64 `yaml:"accuracy_threshold"` // Retrain below this recent accuracy (default: 0.60)
	RecentFraction    float64 `yaml:"recent_fraction"`    // Share of reconciled predictions evaluated (default: 0.20)
}

// DefaultGoalcastConfig returns the default configuration with all standard values
func DefaultGoalcastConfig() *GoalcastConfig {
	assetsPath := defaultAssetsPath()
	config := &GoalcastConfig{
		AssetsPath:  assetsPath,
		CachePath:   filepath.Join(assetsPath, "cache"),
		RawDataPath: filepath.Join(assetsPath, "raw"),
		LedgerPath:  filepath.Join(assetsPath, "cleaned_data.csv"),
		ModelsPath:  filepath.Join(assetsPath, "models"),
		HistoryDb:   filepath.Join(assetsPath, "history.db"),

		OddsApiBaseUrl:    "https://api.the-odds-api.com/v4",
		FixtureApiBaseUrl: "https://v3.football.api-sports.io",
		HistoricalBaseUrl: "https://www.football-data.co.uk",

		OddsRegions: "eu",
		OddsMarkets: "h2h",
		OddsFormat:  "decimal",

		OddsMaxAgeHours:   12,
		LeagueMaxAgeHours: 6,

		InterCallDelaySeconds: 1,

		FormWindow: 5,

		NeutralForm:     0.5,
		NeutralH2HRate:  0.5,
		NeutralHomeOdds: 2.5,
		NeutralDrawOdds: 3.2,
		NeutralAwayOdds: 2.8,

		AccuracyThreshold: 0.60,
		RecentFraction:    0.20,
	}

	// Environment always wins over file values for credentials
	applyEnvCredentials(config)

	return config
}

func defaultAssetsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goalcast"
	}
	return filepath.Join(home, ".goalcast")
}

func applyEnvCredentials(config *GoalcastConfig) {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		config.OddsApiKey = v
	}
	if v := os.Getenv("API_FOOTBALL_KEY"); v != "" {
		config.FixtureApiKey = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		config.DiscordToken = v
	}
}

// Global configuration instance
var Config *GoalcastConfig

// init initializes the global configuration with default values
func init() {
	Config = DefaultGoalcastConfig()
}

// LoadConfig overlays the defaults with values from a YAML file and
// re-applies environment credentials on top
func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := DefaultGoalcastConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyEnvCredentials(config)

	if err := ValidateConfig(config); err != nil {
		return err
	}

	Config = config
	return nil
}

// UpdateConfig allows updating the global configuration
func UpdateConfig(newConfig *GoalcastConfig) {
	Config = newConfig
}

// === CONFIGURATION VALIDATION ===

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *GoalcastConfig) error {
	if config.FormWindow < 1 {
		return fmt.Errorf("FormWindow must be at least 1, got: %d", config.FormWindow)
	}

	if config.OddsMaxAgeHours <= 0 {
		return fmt.Errorf("OddsMaxAgeHours must be positive, got: %d", config.OddsMaxAgeHours)
	}

	if config.LeagueMaxAgeHours <= 0 {
		return fmt.Errorf("LeagueMaxAgeHours must be positive, got: %d", config.LeagueMaxAgeHours)
	}

	if config.InterCallDelaySeconds < 0 {
		return fmt.Errorf("InterCallDelaySeconds must not be negative, got: %d", config.InterCallDelaySeconds)
	}

	if config.AccuracyThreshold < 0.0 || config.AccuracyThreshold > 1.0 {
		return fmt.Errorf("AccuracyThreshold must be between 0.0 and 1.0, got: %f", config.AccuracyThreshold)
	}

	if config.RecentFraction <= 0.0 || config.RecentFraction > 1.0 {
		return fmt.Errorf("RecentFraction must be between 0.0 and 1.0, got: %f", config.RecentFraction)
	}

	// Odds defaults are decimal prices, anything at or below 1.0 is nonsense
	neutrals := []float64{
		config.NeutralHomeOdds,
		config.NeutralDrawOdds,
		config.NeutralAwayOdds,
	}
	for i, odds := range neutrals {
		if odds <= 1.0 {
			return fmt.Errorf("Neutral odds %d must be greater than 1.0, got: %f", i, odds)
		}
	}

	return nil
}

// === HELPER FUNCTIONS FOR EASY ACCESS ===

// GetFormWindow returns the trailing-match window used for form
func GetFormWindow() int {
	return Config.FormWindow
}

// GetOddsMaxAge returns the odds cache validity window
func GetOddsMaxAge() time.Duration {
	return time.Duration(Config.OddsMaxAgeHours) * time.Hour
}

// GetLeagueMaxAge returns the active-league cache validity window
func GetLeagueMaxAge() time.Duration {
	return time.Duration(Config.LeagueMaxAgeHours) * time.Hour
}

// GetInterCallDelay returns the fixed pause between per-league calls
func GetInterCallDelay() time.Duration {
	return time.Duration(Config.InterCallDelaySeconds) * time.Second
}

// RequireOddsApiKey returns the odds provider key or a configuration error
func RequireOddsApiKey() (string, error) {
	if Config.OddsApiKey == "" {
		return "", fmt.Errorf("no odds API key configured: set ODDS_API_KEY")
	}
	return Config.OddsApiKey, nil
}

// RequireFixtureApiKey returns the fixture provider key or a configuration error
func RequireFixtureApiKey() (string, error) {
	if Config.FixtureApiKey == "" {
		return "", fmt.Errorf("no fixture API key configured: set API_FOOTBALL_KEY")
	}
	return Config.FixtureApiKey, nil
}
