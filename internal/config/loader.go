package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	SessionSecret      string
	SessionTTL         time.Duration
	CompletionInterval time.Duration
	OccupancyInterval  time.Duration
	WSSendBuffer       int
}

// Load parses configuration values from the current process environment.
// A .env file next to the binary is read first when present so local
// development does not need exported variables.
//
// The loader applies defaults for optional fields while validating required
// values and aggregating every problem into a single error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:roombook.db?_foreign_keys=on",
		SessionTTL:         24 * time.Hour,
		CompletionInterval: time.Minute,
		OccupancyInterval:  time.Minute,
		WSSendBuffer:       32,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ROOMBOOK_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROOMBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ROOMBOOK_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	// Keys the HMAC digest under which session tokens are stored.
	if secret := strings.TrimSpace(os.Getenv("ROOMBOOK_SESSION_SECRET")); secret == "" {
		missing = append(missing, "ROOMBOOK_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ROOMBOOK_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROOMBOOK_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOOK_COMPLETION_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "ROOMBOOK_COMPLETION_INTERVAL")
		} else {
			cfg.CompletionInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOOK_OCCUPANCY_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "ROOMBOOK_OCCUPANCY_INTERVAL")
		} else {
			cfg.OccupancyInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOOK_WS_SEND_BUFFER")); value != "" {
		buf, err := strconv.Atoi(value)
		if err != nil || buf <= 0 {
			invalid = append(invalid, "ROOMBOOK_WS_SEND_BUFFER")
		} else {
			cfg.WSSendBuffer = buf
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
