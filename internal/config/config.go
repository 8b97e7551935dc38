package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
)

const (
	DatasetSourceCSV      = "csv"
	DatasetSourcePostgres = "postgres"
)

// Config stores runtime configuration for the service and the CLI.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	LogLevel           logging.Level

	DatasetSource       string
	DatasetPath         string
	DatasetTable        string
	DatasetMissing      player.MissingStrategy
	DatasetSeason       string
	DatasetCompetitions []string
	DBURL               string
	DBQueryTimeout      time.Duration

	// DBDisablePreparedBinaryResult is needed behind transaction poolers.
	DBDisablePreparedBinaryResult bool

	SimilarityScaler     similarity.ScalerKind
	SimilarityMetric     similarity.Metric
	SimilarityMode       similarity.Mode
	SimilarityMinMinutes float64
	SimilarityPosition   string
	SimilarityFeatures   []string
	SimilarityTopN       int
	SimilarityNeighbors  int
	BatchWorkers         int

	NarrativeEnabled  bool
	NarrativeLanguage string
	NarrativeCacheTTL time.Duration

	GeminiBaseURL               string
	GeminiAPIKey                string
	GeminiModel                 string
	GeminiTimeout               time.Duration
	GeminiMaxRetries            int
	GeminiRetryBaseDelay        time.Duration
	GeminiRatePerMinute         int
	GeminiCircuitEnabled        bool
	GeminiCircuitFailureCount   int
	GeminiCircuitOpenTimeout    time.Duration
	GeminiCircuitHalfOpenMaxReq int

	MCPEnabled bool
	MCPPath    string

	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "moneyball-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	if err := loadDataset(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadSimilarity(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadNarrative(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	cfg.MCPEnabled, err = strconv.ParseBool(getEnv("MCP_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MCP_ENABLED: %w", err)
	}
	cfg.MCPPath = strings.TrimSpace(getEnv("MCP_PATH", "/mcp"))
	if cfg.MCPEnabled && !strings.HasPrefix(cfg.MCPPath, "/") {
		return Config{}, fmt.Errorf("MCP_PATH must start with /")
	}

	return cfg, nil
}

func loadDataset(cfg *Config) error {
	cfg.DatasetSource = strings.ToLower(strings.TrimSpace(getEnv("DATASET_SOURCE", DatasetSourceCSV)))
	cfg.DatasetPath = strings.TrimSpace(getEnv("DATASET_PATH", "data/players.csv"))
	cfg.DatasetTable = strings.TrimSpace(getEnv("DATASET_TABLE", "player_season_stats"))
	cfg.DatasetSeason = strings.TrimSpace(getEnv("DATASET_SEASON", ""))
	cfg.DatasetCompetitions = splitCSV(getEnv("DATASET_COMPETITIONS", ""))
	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))

	missing, err := player.ParseMissingStrategy(getEnv("DATASET_MISSING_STRATEGY", string(player.MissingKeep)))
	if err != nil {
		return fmt.Errorf("parse DATASET_MISSING_STRATEGY: %w", err)
	}
	cfg.DatasetMissing = missing

	cfg.DBQueryTimeout, err = time.ParseDuration(getEnv("DB_QUERY_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("parse DB_QUERY_TIMEOUT: %w", err)
	}
	if cfg.DBQueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be > 0")
	}
	cfg.DBDisablePreparedBinaryResult, err = strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "false"))
	if err != nil {
		return fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	switch cfg.DatasetSource {
	case DatasetSourceCSV:
		if cfg.DatasetPath == "" {
			return fmt.Errorf("DATASET_PATH is required when DATASET_SOURCE=csv")
		}
	case DatasetSourcePostgres:
		if cfg.DBURL == "" {
			return fmt.Errorf("DB_URL is required when DATASET_SOURCE=postgres")
		}
		if cfg.DatasetTable == "" {
			return fmt.Errorf("DATASET_TABLE cannot be empty")
		}
	default:
		return fmt.Errorf("invalid DATASET_SOURCE %q: valid values are %s, %s", cfg.DatasetSource, DatasetSourceCSV, DatasetSourcePostgres)
	}
	return nil
}

func loadSimilarity(cfg *Config) error {
	var err error
	if cfg.SimilarityScaler, err = similarity.ParseScaler(getEnv("SIMILARITY_SCALER", string(similarity.ScalerStandard))); err != nil {
		return fmt.Errorf("parse SIMILARITY_SCALER: %w", err)
	}
	if cfg.SimilarityMetric, err = similarity.ParseMetric(getEnv("SIMILARITY_METRIC", string(similarity.MetricCosine))); err != nil {
		return fmt.Errorf("parse SIMILARITY_METRIC: %w", err)
	}
	if cfg.SimilarityMode, err = similarity.ParseMode(getEnv("SIMILARITY_MODE", string(similarity.ModeMatrix))); err != nil {
		return fmt.Errorf("parse SIMILARITY_MODE: %w", err)
	}

	cfg.SimilarityMinMinutes, err = strconv.ParseFloat(strings.TrimSpace(getEnv("SIMILARITY_MIN_MINUTES", "0")), 64)
	if err != nil {
		return fmt.Errorf("parse SIMILARITY_MIN_MINUTES: %w", err)
	}
	if cfg.SimilarityMinMinutes < 0 {
		return fmt.Errorf("SIMILARITY_MIN_MINUTES must be >= 0")
	}
	cfg.SimilarityPosition = strings.TrimSpace(getEnv("SIMILARITY_POSITION", ""))
	cfg.SimilarityFeatures = splitCSV(getEnv("SIMILARITY_FEATURES", ""))

	cfg.SimilarityTopN, err = getEnvAsInt("SIMILARITY_TOP_N", 10)
	if err != nil {
		return fmt.Errorf("parse SIMILARITY_TOP_N: %w", err)
	}
	if cfg.SimilarityTopN <= 0 {
		return fmt.Errorf("SIMILARITY_TOP_N must be > 0")
	}
	cfg.SimilarityNeighbors, err = getEnvAsInt("SIMILARITY_NEIGHBORS", similarity.DefaultNeighbors)
	if err != nil {
		return fmt.Errorf("parse SIMILARITY_NEIGHBORS: %w", err)
	}
	if cfg.SimilarityNeighbors <= 0 {
		return fmt.Errorf("SIMILARITY_NEIGHBORS must be > 0")
	}
	cfg.BatchWorkers, err = getEnvAsInt("BATCH_WORKERS", 4)
	if err != nil {
		return fmt.Errorf("parse BATCH_WORKERS: %w", err)
	}
	if cfg.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be >= 1")
	}
	return nil
}

func loadNarrative(cfg *Config) error {
	var err error
	cfg.NarrativeEnabled, err = strconv.ParseBool(getEnv("NARRATIVE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse NARRATIVE_ENABLED: %w", err)
	}
	cfg.NarrativeLanguage = strings.TrimSpace(getEnv("NARRATIVE_LANGUAGE", "Indonesian"))
	cfg.NarrativeCacheTTL, err = time.ParseDuration(getEnv("NARRATIVE_CACHE_TTL", "1h"))
	if err != nil {
		return fmt.Errorf("parse NARRATIVE_CACHE_TTL: %w", err)
	}

	cfg.GeminiBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")), "/")
	cfg.GeminiAPIKey = strings.TrimSpace(getEnv("GEMINI_API_KEY", ""))
	cfg.GeminiModel = strings.TrimSpace(getEnv("GEMINI_MODEL", "gemini-2.5-flash"))
	if cfg.NarrativeEnabled && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when NARRATIVE_ENABLED=true")
	}

	cfg.GeminiTimeout, err = time.ParseDuration(getEnv("GEMINI_TIMEOUT", "60s"))
	if err != nil {
		return fmt.Errorf("parse GEMINI_TIMEOUT: %w", err)
	}
	if cfg.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be > 0")
	}
	cfg.GeminiMaxRetries, err = getEnvAsInt("GEMINI_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse GEMINI_MAX_RETRIES: %w", err)
	}
	if cfg.GeminiMaxRetries < 1 {
		return fmt.Errorf("GEMINI_MAX_RETRIES must be >= 1")
	}
	cfg.GeminiRetryBaseDelay, err = time.ParseDuration(getEnv("GEMINI_RETRY_BASE_DELAY", "15s"))
	if err != nil {
		return fmt.Errorf("parse GEMINI_RETRY_BASE_DELAY: %w", err)
	}
	if cfg.GeminiRetryBaseDelay < 0 {
		return fmt.Errorf("GEMINI_RETRY_BASE_DELAY must be >= 0")
	}
	cfg.GeminiRatePerMinute, err = getEnvAsInt("GEMINI_RATE_PER_MINUTE", 10)
	if err != nil {
		return fmt.Errorf("parse GEMINI_RATE_PER_MINUTE: %w", err)
	}
	if cfg.GeminiRatePerMinute < 0 {
		return fmt.Errorf("GEMINI_RATE_PER_MINUTE must be >= 0")
	}

	cfg.GeminiCircuitEnabled, err = strconv.ParseBool(getEnv("GEMINI_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse GEMINI_CIRCUIT_ENABLED: %w", err)
	}
	cfg.GeminiCircuitFailureCount, err = getEnvAsInt("GEMINI_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return fmt.Errorf("parse GEMINI_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.GeminiCircuitFailureCount < 1 {
		return fmt.Errorf("GEMINI_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	cfg.GeminiCircuitOpenTimeout, err = time.ParseDuration(getEnv("GEMINI_CIRCUIT_OPEN_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("parse GEMINI_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if cfg.GeminiCircuitOpenTimeout <= 0 {
		return fmt.Errorf("GEMINI_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	cfg.GeminiCircuitHalfOpenMaxReq, err = getEnvAsInt("GEMINI_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return fmt.Errorf("parse GEMINI_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.GeminiCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("GEMINI_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	return nil
}

func loadObservability(cfg *Config) error {
	var err error
	cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	cfg.UptraceLogsEnabled, err = strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeUploadRate, err = time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if cfg.PyroscopeUploadRate <= 0 {
		return fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", "127.0.0.1:6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	for _, item := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(value), "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
