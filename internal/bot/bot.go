// Package bot is the Discord surface of the prediction pipeline. It owns
// all goroutine dispatch: the core prediction calls are synchronous and are
// always run off the gateway handler's goroutine
package bot

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/pkg/goalcast"
)

const commandPrefix = "!"

// dailyPostHour is the UTC hour at which tomorrow's predictions are posted
const dailyPostHour = 10

// oddsRefreshInterval keeps the odds cache warm between user commands
const oddsRefreshInterval = 30 * time.Minute

// Bot wraps a Discord session serving prediction commands and the daily
// announcement job
type Bot struct {
	session   *discordgo.Session
	channelID string
	mu        sync.Mutex
	stop      chan struct{}
}

// Config for the Discord bot
type Config struct {
	Token             string
	AnnounceChannelID string
}

// NewBot creates a Discord bot. Token must be non-empty
func NewBot(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	// Message content is required to see "!bet" style commands
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		session:   s,
		channelID: cfg.AnnounceChannelID,
		stop:      make(chan struct{}),
	}
	s.AddHandler(b.onMessage)
	return b, nil
}

// Start opens the gateway connection and launches the background jobs
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	logger.Info("Bot is now online as", b.session.State.User.Username)

	go b.dailyPredictionLoop()
	go b.oddsRefreshLoop()
	return nil
}

// Stop shuts down the background jobs and the gateway connection
func (b *Bot) Stop() error {
	close(b.stop)
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, commandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "bet":
		league := "EPL"
		if len(fields) > 1 {
			league = fields[1]
		}
		b.send(m.ChannelID, fmt.Sprintf("Fetching predictions for %s...", league))
		// The prediction path blocks on remote providers; never run it on
		// the gateway handler goroutine
		go b.handleBet(m.ChannelID, league)
	case "leagues":
		b.send(m.ChannelID, leaguesMessage())
	case "help":
		b.send(m.ChannelID, helpMessage())
	}
}

func (b *Bot) handleBet(channelID, league string) {
	predictions, msg := goalcast.PredictLeague(league, false)
	if msg != "" {
		b.send(channelID, msg)
		return
	}

	l, _ := goalcast.LeagueByKey(league)
	b.send(channelID, fmt.Sprintf("Predictions for %s:\n%s",
		l.Name, goalcast.FormatPredictions(predictions)))
}

// leaguesMessage lists supported leagues in stable key order
func leaguesMessage() string {
	keys := make([]string, 0, len(goalcast.SupportedLeagues))
	for key := range goalcast.SupportedLeagues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, "Available leagues:")
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, goalcast.SupportedLeagues[key].Name))
	}
	return strings.Join(lines, "\n")
}

func helpMessage() string {
	return strings.Join([]string{
		"Available commands:",
		"- !bet [league]: match predictions for a league (default: EPL)",
		"- !leagues: list all supported leagues",
		"- !help: show this message",
	}, "\n")
}

func (b *Bot) send(channelID, content string) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return
	}
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		logger.Warn("Failed to send message", err)
	}
}

// dailyPredictionLoop posts tomorrow's predictions to the announce channel
// once a day at the configured hour
func (b *Bot) dailyPredictionLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-time.After(untilNextDailyPost(time.Now().UTC())):
		}
		b.postDailyPredictions()
	}
}

// untilNextDailyPost returns the wait until the next daily posting slot
func untilNextDailyPost(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), dailyPostHour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func (b *Bot) postDailyPredictions() {
	if b.channelID == "" {
		logger.Warn("No announce channel configured, skipping daily predictions")
		return
	}

	predictions, msg := goalcast.PredictLeague("EPL", true)
	if msg != "" {
		logger.Info("No daily predictions to send:", msg)
		return
	}
	b.send(b.channelID, "Tomorrow's predictions:\n"+goalcast.FormatPredictions(predictions))
}

// oddsRefreshLoop keeps the odds cache warm so user commands rarely pay the
// provider round-trip
func (b *Bot) oddsRefreshLoop() {
	ticker := time.NewTicker(oddsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if _, err := goalcast.OddsForLeagues(); err != nil {
				logger.Warn("Background odds refresh failed", err)
			}
		}
	}
}
