package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by REPRIME_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("REPRIME_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// ResponderProvider returns the configured response collaborator.
// Defaults to "simulated" if not set.
// Valid values: simulated, http, mock
func ResponderProvider() string {
	p := os.Getenv("RESPONDER_PROVIDER")
	if p == "" {
		return "simulated"
	}
	return p
}

// ResponderURL returns the callback URL for the HTTP responder provider.
func ResponderURL() string {
	return os.Getenv("RESPONDER_URL")
}

// NATSURL returns the broker URL for batch report publishing.
// Empty means reports go to the log only.
func NATSURL() string {
	return os.Getenv("NATS_URL")
}

// ReportSubject returns the NATS subject prefix for batch reports.
// Defaults to "reprime.batches" if not set.
func ReportSubject() string {
	s := os.Getenv("REPORT_SUBJECT")
	if s == "" {
		return "reprime.batches"
	}
	return s
}

// WatchdogInterval returns how often the decay watchdog sweeps the store.
// Defaults to 15m if not set.
func WatchdogInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("WATCHDOG_INTERVAL"))
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// WorkerPoolSize returns the number of concurrent priming sessions the
// scheduler may dispatch. Defaults to 4 if not set.
func WorkerPoolSize() int {
	n, err := strconv.Atoi(os.Getenv("WORKER_POOL_SIZE"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// SessionCeiling returns the hard wall-clock limit for one priming session.
// Defaults to 45s if not set.
func SessionCeiling() time.Duration {
	d, err := time.ParseDuration(os.Getenv("SESSION_CEILING"))
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// ReinstatementStrength returns the strength a successful session resets an
// item to. Defaults to 1.0; values outside (0, 1] fall back to the default.
func ReinstatementStrength() float64 {
	v, err := strconv.ParseFloat(os.Getenv("REINSTATEMENT_STRENGTH"), 64)
	if err != nil || v <= 0 || v > 1 {
		return 1.0
	}
	return v
}

// CyclesPath returns the path of the optional TOML cycle table.
// Empty means the compiled-in defaults apply.
func CyclesPath() string {
	return os.Getenv("CYCLES_PATH")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
