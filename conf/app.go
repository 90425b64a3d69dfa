package conf

import (
	"strings"
	"time"
)

// Identity is the placeholder user shown by the dashboard. No credential exchange backs it.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Config is the process-wide configuration handed to the gateway, the view controllers and
// the HTTP surface at construction. It lives from process start to process end.
type Config struct {
	// BaseURL is the backend origin including the /api prefix, without a trailing slash.
	BaseURL string

	UploadTimeout  time.Duration
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	HealthPath     string
	// SuccessDelay is how long a finished upload stays in the Success state before closing.
	SuccessDelay time.Duration
	// SessionTTL is how long an idle detail screen keeps its analysis and appeal results.
	SessionTTL time.Duration

	ListenAddr      string
	Environment     string
	NewRelicLicense string

	Identity Identity
}

const (
	DefaultBaseURL        = "https://localhost:5001/api"
	DefaultUploadTimeout  = 5 * time.Minute
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultHealthPath     = "/health"
	DefaultSuccessDelay   = 2 * time.Second
	DefaultSessionTTL     = 30 * time.Minute
	DefaultListenAddr     = ":3000"
)

// Default is the configuration used when nothing is set.
func Default() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UploadTimeout:  DefaultUploadTimeout,
		HealthInterval: DefaultHealthInterval,
		HealthTimeout:  DefaultHealthTimeout,
		HealthPath:     DefaultHealthPath,
		SuccessDelay:   DefaultSuccessDelay,
		SessionTTL:     DefaultSessionTTL,
		ListenAddr:     DefaultListenAddr,
		Environment:    "local",
		Identity: Identity{
			Name:  "Demo Reviewer",
			Email: "reviewer@example.com",
			Role:  "Denials Analyst",
		},
	}
}

// Load builds a Config from conf and the environment, applying defaults for anything unset.
func Load() Config {
	d := Default()
	return Config{
		BaseURL:         strings.TrimRight(fromEnv("DENIALS_API_URL", d.BaseURL), "/"),
		UploadTimeout:   GetEnvDuration("DENIALS_UPLOAD_TIMEOUT", d.UploadTimeout),
		HealthInterval:  GetEnvDuration("DENIALS_HEALTH_INTERVAL", d.HealthInterval),
		HealthTimeout:   GetEnvDuration("DENIALS_HEALTH_TIMEOUT", d.HealthTimeout),
		HealthPath:      fromEnv("DENIALS_HEALTH_PATH", d.HealthPath),
		SuccessDelay:    GetEnvDuration("DENIALS_UPLOAD_SUCCESS_DELAY", d.SuccessDelay),
		SessionTTL:      GetEnvDuration("DENIALS_SESSION_TTL", d.SessionTTL),
		ListenAddr:      fromEnv("DENIALS_LISTEN_ADDR", d.ListenAddr),
		Environment:     fromEnv("DEPLOYMENT_TARGET", d.Environment),
		NewRelicLicense: GetEnv("NEW_RELIC_LICENSE_KEY"),
		Identity: Identity{
			Name:  fromEnv("DENIALS_USER_NAME", d.Identity.Name),
			Email: fromEnv("DENIALS_USER_EMAIL", d.Identity.Email),
			Role:  fromEnv("DENIALS_USER_ROLE", d.Identity.Role),
		},
	}
}

func fromEnv(key, otherwise string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return otherwise
}
