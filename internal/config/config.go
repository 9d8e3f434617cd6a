package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	NodeID   string
	HTTPPort int
	Debug    bool
	LogLevel slog.Level
	LogFile  string

	// APIToken gates /api and /internal routes. Empty disables the check.
	APIToken  string
	WSOrigins []string

	PlanDataDir      string
	PlanDatasetsFile string
	MasterDir        string

	LogisticsDataPath        string
	LogisticsLockPath        string
	LogisticsLockTimeout     time.Duration
	LogisticsMaxJobs         int
	LogisticsRetention       time.Duration
	LogisticsAllowedStatuses []string
	LogisticsAuditPath       string

	KVDataDir    string
	DocumentsDir string

	// LogDir holds rotated archives and the mirror comparison logs.
	LogDir          string
	LogRetention    time.Duration
	MirrorURL       string
	MirrorStatusDir string
}

func Load() *Config {
	serverRoot := getEnv("SERVER_ROOT", "/srv/rpi-server")
	dataPath := getEnv("LOGISTICS_DATA_PATH", filepath.Join(serverRoot, "data", "logistics", "jobs.json"))

	return &Config{
		NodeID:   getEnv("NODE_ID", "floorsync"),
		HTTPPort: getEnvInt("PORT", getEnvInt("HTTP_PORT", 8501)),
		Debug:    getEnvBool("DEBUG", false),
		LogLevel: ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),

		APIToken:  strings.TrimSpace(getEnv("API_TOKEN", "")),
		WSOrigins: getEnvList("WS_ORIGINS", []string{"*"}),

		PlanDataDir:      getEnv("PLAN_DATA_DIR", filepath.Join(serverRoot, "data", "plan")),
		PlanDatasetsFile: getEnv("PLAN_DATASETS_FILE", ""),
		MasterDir:        getEnv("SERVER_MASTER_DIR", filepath.Join(serverRoot, "master")),

		LogisticsDataPath:        dataPath,
		LogisticsLockPath:        getEnv("LOGISTICS_LOCK_PATH", dataPath+".lock"),
		LogisticsLockTimeout:     getEnvDuration("LOGISTICS_LOCK_TIMEOUT", 5*time.Second),
		LogisticsMaxJobs:         getEnvInt("LOGISTICS_MAX_JOBS", 1000),
		LogisticsRetention:       time.Duration(getEnvInt("LOGISTICS_RETENTION_DAYS", 30)) * 24 * time.Hour,
		LogisticsAllowedStatuses: getEnvList("LOGISTICS_ALLOWED_STATUSES", []string{"pending", "in_transit", "completed", "cancelled"}),
		LogisticsAuditPath:       getEnv("LOGISTICS_AUDIT_PATH", filepath.Join(serverRoot, "logs", "logistics_audit.log")),

		KVDataDir:    getEnv("KV_DATA_DIR", filepath.Join(serverRoot, "data", "kv")),
		DocumentsDir: getEnv("DOCUMENTS_DIR", filepath.Join(serverRoot, "documents")),

		LogDir:          getEnv("LOG_DIR", filepath.Join(serverRoot, "logs")),
		LogRetention:    time.Duration(getEnvInt("LOG_RETENTION_DAYS", 30)) * 24 * time.Hour,
		MirrorURL:       strings.TrimRight(getEnv("MIRROR_URL", ""), "/"),
		MirrorStatusDir: getEnv("MIRROR_STATUS_DIR", filepath.Join(serverRoot, "data", "mirror")),
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// LocalURL is the base URL of the server on this node.
func (c *Config) LocalURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.HTTPPort)
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("5", "2.5").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
