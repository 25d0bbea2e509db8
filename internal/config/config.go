package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (best-effort dedup cache; the engine runs without it)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Mail transport
	AWSRegion    string
	SESFromEmail string

	// Optional SQS dispatch feed
	SQSRegion   string
	SQSQueueURL string

	// Carrier tracking endpoints; an empty URL switches that adapter to its
	// offline fixture events.
	DHLTrackingURL  string
	DPDTrackingURL  string
	CarrierPriority []string
	CarrierTimeout  time.Duration

	// SourceScopeMap maps normalized source-system names to sales channel
	// scopes, e.g. "amazon=sc-a,ebay=sc-b".
	SourceScopeMap map[string]string

	// Scheduling
	WorkerBatchSize   int
	WorkerInterval    time.Duration
	ScanInterval      time.Duration
	SyncInterval      time.Duration
	RecentOrderWindow int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "orderpulse",
		DBPassword: "",
		DBName:     "orderpulse",
		DBSSLMode:  "disable",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		AWSRegion:    "eu-central-1",
		SESFromEmail: "noreply@orderpulse.local",

		CarrierPriority: []string{"dhl", "dpd"},
		CarrierTimeout:  8 * time.Second,

		SourceScopeMap: map[string]string{},

		WorkerBatchSize:   10,
		WorkerInterval:    30 * time.Second,
		ScanInterval:      15 * time.Minute,
		SyncInterval:      1 * time.Hour,
		RecentOrderWindow: 500,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
	}

	if url := os.Getenv("DHL_TRACKING_URL"); url != "" {
		cfg.DHLTrackingURL = url
	}

	if url := os.Getenv("DPD_TRACKING_URL"); url != "" {
		cfg.DPDTrackingURL = url
	}

	if priority := os.Getenv("CARRIER_PRIORITY"); priority != "" {
		cfg.CarrierPriority = splitList(priority)
		if len(cfg.CarrierPriority) == 0 {
			return nil, fmt.Errorf("invalid CARRIER_PRIORITY: %q", priority)
		}
	}

	if timeout := os.Getenv("CARRIER_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid CARRIER_TIMEOUT: %w", err)
		}
		cfg.CarrierTimeout = d
	}

	if mapping := os.Getenv("SOURCE_SCOPE_MAP"); mapping != "" {
		m, err := parseScopeMap(mapping)
		if err != nil {
			return nil, err
		}
		cfg.SourceScopeMap = m
	}

	if size := os.Getenv("WORKER_BATCH_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
		}
		cfg.WorkerBatchSize = s
	}

	if interval := os.Getenv("WORKER_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_INTERVAL: %w", err)
		}
		cfg.WorkerInterval = d
	}

	if interval := os.Getenv("SCAN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL: %w", err)
		}
		cfg.ScanInterval = d
	}

	if interval := os.Getenv("SYNC_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
		}
		cfg.SyncInterval = d
	}

	if window := os.Getenv("RECENT_ORDER_WINDOW"); window != "" {
		w, err := strconv.Atoi(window)
		if err != nil {
			return nil, fmt.Errorf("invalid RECENT_ORDER_WINDOW: %w", err)
		}
		cfg.RecentOrderWindow = w
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}

func parseScopeMap(raw string) (map[string]string, error) {
	m := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("invalid SOURCE_SCOPE_MAP entry: %q", pair)
		}
		m[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return m, nil
}
