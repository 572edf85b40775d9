package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BaseURL         string
	WSBaseURL       string
	TokenFile       string
	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
	UnreadPoll      time.Duration
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		BaseURL:         "http://127.0.0.1:8000/api/",
		HTTPTimeout:     30 * time.Second,
		RefreshInterval: 4 * time.Minute,
		RefreshTimeout:  15 * time.Second,
		UnreadPoll:      30 * time.Second,
	}

	if raw := env.Getenv("KENIVOIRE_BASE_URL"); raw != "" {
		if _, err := url.Parse(raw); err != nil {
			return Config{}, fmt.Errorf("invalid KENIVOIRE_BASE_URL")
		}
		cfg.BaseURL = raw
	}

	cfg.WSBaseURL = env.Getenv("KENIVOIRE_WS_URL")
	if cfg.WSBaseURL == "" {
		ws, err := deriveWSBase(cfg.BaseURL)
		if err != nil {
			return Config{}, err
		}
		cfg.WSBaseURL = ws
	}

	cfg.TokenFile = env.Getenv("KENIVOIRE_TOKEN_FILE")
	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.TokenFile = home + "/.kenivoire/tokens.json"
		}
	}

	for _, item := range []struct {
		key string
		dst *time.Duration
	}{
		{"KENIVOIRE_HTTP_TIMEOUT_SECONDS", &cfg.HTTPTimeout},
		{"KENIVOIRE_REFRESH_INTERVAL_SECONDS", &cfg.RefreshInterval},
		{"KENIVOIRE_REFRESH_TIMEOUT_SECONDS", &cfg.RefreshTimeout},
		{"KENIVOIRE_UNREAD_POLL_SECONDS", &cfg.UnreadPoll},
	} {
		if raw := env.Getenv(item.key); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil || seconds <= 0 {
				return Config{}, fmt.Errorf("invalid %s", item.key)
			}
			*item.dst = time.Duration(seconds) * time.Second
		}
	}

	return cfg, nil
}

// deriveWSBase maps the REST base to the websocket origin: the push
// endpoints live on the same host with an http -> ws scheme swap.
func deriveWSBase(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = ""
	return u.String(), nil
}
