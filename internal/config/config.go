package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Networks lists the chain networks to serve; each needs an RPC endpoint
	// via RPC_URL_<NETWORK>.
	Networks []string
	RPCURLs  map[string]string

	RPCTimeout time.Duration

	// DBDriver selects mysql or sqlite. SQLite is the embedded development
	// store; MySQL is the deployment store.
	DBDriver   string
	DBDSN      string
	SQLitePath string
	RedisAddr  string
	CacheTTL   time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string

	OtelEndpoint string

	HotCacheTTL   time.Duration
	WarmCacheTTL  time.Duration
	SweepInterval time.Duration

	SyncWindow    int64
	StatsInterval time.Duration
	PollInterval  time.Duration

	RetentionMaxFull int
	RetentionWindow  time.Duration
	RetentionTypes   []string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	networks, err := parseList(source, "NETWORKS", "")
	if err != nil {
		return Config{}, errors.New("NETWORKS is required")
	}

	rpcURLs := make(map[string]string, len(networks))
	for _, network := range networks {
		key := "RPC_URL_" + envKey(network)
		url, ok := source.Lookup(key)
		if !ok || strings.TrimSpace(url) == "" {
			// Single-network setups can use the plain key.
			if len(networks) == 1 {
				if fallback, ok := source.Lookup("RPC_URL"); ok && strings.TrimSpace(fallback) != "" {
					rpcURLs[network] = strings.TrimSpace(fallback)
					continue
				}
			}
			return Config{}, fmt.Errorf("%s is required", key)
		}
		rpcURLs[network] = strings.TrimSpace(url)
	}

	rpcTimeout, err := parseDurationEnv(source, "RPC_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	dbDriver, ok := source.Lookup("DB_DRIVER")
	if !ok || strings.TrimSpace(dbDriver) == "" {
		dbDriver = "mysql"
	}
	dbDriver = strings.ToLower(strings.TrimSpace(dbDriver))
	if dbDriver != "mysql" && dbDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", dbDriver)
	}

	dbDSN, ok := source.Lookup("DB_DSN")
	if !ok || strings.TrimSpace(dbDSN) == "" {
		dbDSN = "root:@tcp(127.0.0.1:3306)/chainindex?parseTime=true&multiStatements=true"
	}
	sqlitePath, ok := source.Lookup("SQLITE_PATH")
	if !ok || strings.TrimSpace(sqlitePath) == "" {
		sqlitePath = "chainindex.db"
	}

	redisAddr := ""
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}
	cacheTTL, err := parseDurationEnv(source, "CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "chainindex-events"
	}
	kafkaGroupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || kafkaGroupID == "" {
		kafkaGroupID = "chainindex-indexer"
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	hotCacheTTL, err := parseDurationEnv(source, "HOT_CACHE_TTL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	warmCacheTTL, err := parseDurationEnv(source, "WARM_CACHE_TTL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	sweepInterval, err := parseDurationEnv(source, "CACHE_SWEEP_INTERVAL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	syncWindow, err := parseIntEnv(source, "SYNC_WINDOW", 10)
	if err != nil {
		return Config{}, err
	}
	statsInterval, err := parseDurationEnv(source, "STATS_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	retentionMaxFull, err := parseIntEnv(source, "RETENTION_MAX_FULL", 5)
	if err != nil {
		return Config{}, err
	}
	retentionWindow, err := parseDurationEnv(source, "RETENTION_WINDOW", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	var retentionTypes []string
	if raw, ok := source.Lookup("RETENTION_LITE_TYPES"); ok && strings.TrimSpace(raw) != "" {
		retentionTypes, err = parseList(source, "RETENTION_LITE_TYPES", "")
		if err != nil {
			return Config{}, err
		}
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSizeMB, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 0)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Networks:         networks,
		RPCURLs:          rpcURLs,
		RPCTimeout:       rpcTimeout,
		DBDriver:         dbDriver,
		DBDSN:            dbDSN,
		SQLitePath:       sqlitePath,
		RedisAddr:        redisAddr,
		CacheTTL:         cacheTTL,
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: kafkaTopicPrefix,
		KafkaGroupID:     kafkaGroupID,
		OtelEndpoint:     otelEndpoint,
		HotCacheTTL:      hotCacheTTL,
		WarmCacheTTL:     warmCacheTTL,
		SweepInterval:    sweepInterval,
		SyncWindow:       int64(syncWindow),
		StatsInterval:    statsInterval,
		PollInterval:     pollInterval,
		RetentionMaxFull: retentionMaxFull,
		RetentionWindow:  retentionWindow,
		RetentionTypes:   retentionTypes,
		LogLevel:         logLevel,
		LogFile:          logFile,
		LogMaxSizeMB:     logMaxSizeMB,
		LogMaxBackups:    logMaxBackups,
	}, nil
}

func envKey(network string) string {
	key := strings.ToUpper(network)
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
