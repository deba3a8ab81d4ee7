package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	TelegramToken      string
	DeveloperChatID    int64
	DBPath             string
	ServerPort         string
	LogLevel           string
	AdvancedTeamsFile  string
	GuestSchoolMarkers []string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		DBPath:             getEnv("DB_PATH", "scoreboard.db"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AdvancedTeamsFile:  getEnv("ADVANCED_TEAMS_FILE", ""),
		GuestSchoolMarkers: splitCSV(getEnv("GUEST_SCHOOL_MARKERS", "omi,cbtis,cetis")),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	rawChatID := getEnv("TELEGRAM_DEVELOPER_CHAT_ID", "")
	if rawChatID == "" {
		return nil, fmt.Errorf("TELEGRAM_DEVELOPER_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_DEVELOPER_CHAT_ID: %w", err)
	}
	cfg.DeveloperChatID = chatID

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("advanced_teams_file", cfg.AdvancedTeamsFile).
		Strs("guest_school_markers", cfg.GuestSchoolMarkers).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)
