package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID     string
	HTTPPort      int
	GRPCPort      int
	PublicBaseURL string
	LogLevel      string

	DatabaseURL   string
	DBMaxConns    int32
	AutoMigrate   bool
	RedisURL      string
	KafkaBrokers  []string
	ConsumerGroup string
	InputTopics   []string
	TopicByEvent  map[string]string
	DLQTopic      string

	Tiers                domain.TierTable
	Milestones           domain.MilestoneCatalog
	DefaultMinimumPayout decimal.Decimal
	MinimumPayoutFloor   decimal.Decimal
	DefaultCookieDays    int
	ReferralGracePeriod  time.Duration
	OngoingRevenueShare  bool
	LeaderboardSize      int

	DashboardCacheTTL    time.Duration
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	ConsumerPollInterval time.Duration
	OutboxFlushInterval  time.Duration
	OutboxFlushBatchSize int
	OutboxMaxAttempts    int
	ExpiryInterval       time.Duration
	ExpiryBatchSize      int

	JWTSecret          string
	ClickRatePerSecond float64
	ClickBurst         int
}

type tierFile struct {
	Name                string `yaml:"name"`
	MinReferrals        int    `yaml:"min_referrals"`
	FlatFee             string `yaml:"flat_fee"`
	RevenueSharePercent string `yaml:"revenue_share_percent"`
}

type milestoneFile struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	ReferralsRequired int    `yaml:"referrals_required"`
	BonusAmount       string `yaml:"bonus_amount"`
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL   string            `yaml:"postgres_url"`
		PostgresConns int32             `yaml:"postgres_max_conns"`
		AutoMigrate   *bool             `yaml:"auto_migrate"`
		RedisURL      string            `yaml:"redis_url"`
		KafkaBrokers  []string          `yaml:"kafka_brokers"`
		ConsumerGroup string            `yaml:"consumer_group"`
		InputTopics   []string          `yaml:"input_topics"`
		TopicByEvent  map[string]string `yaml:"topic_by_event"`
		DLQTopic      string            `yaml:"dlq_topic"`
	} `yaml:"dependencies"`
	Partner struct {
		PublicBaseURL        string          `yaml:"public_base_url"`
		Tiers                []tierFile      `yaml:"tiers"`
		Milestones           []milestoneFile `yaml:"milestones"`
		DefaultMinimumPayout string          `yaml:"default_minimum_payout"`
		MinimumPayoutFloor   string          `yaml:"minimum_payout_floor"`
		DefaultCookieDays    int             `yaml:"default_cookie_days"`
		ReferralGraceDays    int             `yaml:"referral_grace_days"`
		OngoingRevenueShare  *bool           `yaml:"ongoing_revenue_share"`
		LeaderboardSize      int             `yaml:"leaderboard_size"`
	} `yaml:"partner"`
	Runtime struct {
		DashboardCacheSeconds int `yaml:"dashboard_cache_seconds"`
		IdempotencyTTLHours   int `yaml:"idempotency_ttl_hours"`
		EventDedupTTLHours    int `yaml:"event_dedup_ttl_hours"`
		ConsumerPollSeconds   int `yaml:"consumer_poll_seconds"`
		OutboxFlushSeconds    int `yaml:"outbox_flush_seconds"`
		OutboxFlushBatchSize  int `yaml:"outbox_flush_batch_size"`
		OutboxMaxAttempts     int `yaml:"outbox_max_attempts"`
		ExpiryIntervalMinutes int `yaml:"expiry_interval_minutes"`
		ExpiryBatchSize       int `yaml:"expiry_batch_size"`
	} `yaml:"runtime"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	HTTP struct {
		ClickRatePerSecond float64 `yaml:"click_rate_per_second"`
		ClickBurst         int     `yaml:"click_burst"`
	} `yaml:"http"`
}

func defaultConfig() Config {
	return Config{
		ServiceID:            "M89-Partner-Engine",
		HTTPPort:             8080,
		GRPCPort:             9090,
		PublicBaseURL:        "https://platform.com",
		LogLevel:             "info",
		DBMaxConns:           10,
		AutoMigrate:          true,
		ConsumerGroup:        "partner-engine",
		InputTopics:          []string{domain.EventSignupCompleted, domain.EventPaymentSucceeded, domain.EventPayoutRailUpdated, domain.EventMilestonesEvaluate},
		TopicByEvent:         map[string]string{},
		DLQTopic:             "partner-engine.dlq",
		Tiers:                domain.DefaultTierTable(),
		Milestones:           domain.DefaultMilestones(),
		DefaultMinimumPayout: decimal.NewFromInt(50),
		MinimumPayoutFloor:   decimal.NewFromInt(10),
		DefaultCookieDays:    domain.DefaultCookieDurationDays,
		ReferralGracePeriod:  180 * 24 * time.Hour,
		LeaderboardSize:      20,
		DashboardCacheTTL:    time.Minute,
		IdempotencyTTL:       7 * 24 * time.Hour,
		EventDedupTTL:        7 * 24 * time.Hour,
		ConsumerPollInterval: 2 * time.Second,
		OutboxFlushInterval:  2 * time.Second,
		OutboxFlushBatchSize: 100,
		OutboxMaxAttempts:    5,
		ExpiryInterval:       24 * time.Hour,
		ExpiryBatchSize:      500,
		ClickRatePerSecond:   5,
		ClickBurst:           20,
	}
}

// LoadConfig layers defaults, the YAML file at path (optional), a local .env
// file (optional) and process environment, then validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if raw, err := os.ReadFile(path); err == nil {
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if err := applyFile(&cfg, f); err != nil {
			return Config{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) error {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	d := f.Dependencies
	if d.PostgresURL != "" {
		cfg.DatabaseURL = d.PostgresURL
	}
	if d.PostgresConns > 0 {
		cfg.DBMaxConns = d.PostgresConns
	}
	if d.AutoMigrate != nil {
		cfg.AutoMigrate = *d.AutoMigrate
	}
	if d.RedisURL != "" {
		cfg.RedisURL = d.RedisURL
	}
	if len(d.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = d.KafkaBrokers
	}
	if d.ConsumerGroup != "" {
		cfg.ConsumerGroup = d.ConsumerGroup
	}
	if len(d.InputTopics) > 0 {
		cfg.InputTopics = d.InputTopics
	}
	for event, topic := range d.TopicByEvent {
		cfg.TopicByEvent[event] = topic
	}
	if d.DLQTopic != "" {
		cfg.DLQTopic = d.DLQTopic
	}

	p := f.Partner
	if p.PublicBaseURL != "" {
		cfg.PublicBaseURL = p.PublicBaseURL
	}
	if len(p.Tiers) > 0 {
		tiers, err := parseTiers(p.Tiers)
		if err != nil {
			return err
		}
		cfg.Tiers = tiers
	}
	if len(p.Milestones) > 0 {
		milestones, err := parseMilestones(p.Milestones)
		if err != nil {
			return err
		}
		cfg.Milestones = milestones
	}
	if p.DefaultMinimumPayout != "" {
		v, err := decimal.NewFromString(p.DefaultMinimumPayout)
		if err != nil {
			return fmt.Errorf("partner.default_minimum_payout: %w", err)
		}
		cfg.DefaultMinimumPayout = v
	}
	if p.MinimumPayoutFloor != "" {
		v, err := decimal.NewFromString(p.MinimumPayoutFloor)
		if err != nil {
			return fmt.Errorf("partner.minimum_payout_floor: %w", err)
		}
		cfg.MinimumPayoutFloor = v
	}
	if p.DefaultCookieDays > 0 {
		cfg.DefaultCookieDays = p.DefaultCookieDays
	}
	if p.ReferralGraceDays > 0 {
		cfg.ReferralGracePeriod = time.Duration(p.ReferralGraceDays) * 24 * time.Hour
	}
	if p.OngoingRevenueShare != nil {
		cfg.OngoingRevenueShare = *p.OngoingRevenueShare
	}
	if p.LeaderboardSize > 0 {
		cfg.LeaderboardSize = p.LeaderboardSize
	}

	rt := f.Runtime
	if rt.DashboardCacheSeconds > 0 {
		cfg.DashboardCacheTTL = time.Duration(rt.DashboardCacheSeconds) * time.Second
	}
	if rt.IdempotencyTTLHours > 0 {
		cfg.IdempotencyTTL = time.Duration(rt.IdempotencyTTLHours) * time.Hour
	}
	if rt.EventDedupTTLHours > 0 {
		cfg.EventDedupTTL = time.Duration(rt.EventDedupTTLHours) * time.Hour
	}
	if rt.ConsumerPollSeconds > 0 {
		cfg.ConsumerPollInterval = time.Duration(rt.ConsumerPollSeconds) * time.Second
	}
	if rt.OutboxFlushSeconds > 0 {
		cfg.OutboxFlushInterval = time.Duration(rt.OutboxFlushSeconds) * time.Second
	}
	if rt.OutboxFlushBatchSize > 0 {
		cfg.OutboxFlushBatchSize = rt.OutboxFlushBatchSize
	}
	if rt.OutboxMaxAttempts > 0 {
		cfg.OutboxMaxAttempts = rt.OutboxMaxAttempts
	}
	if rt.ExpiryIntervalMinutes > 0 {
		cfg.ExpiryInterval = time.Duration(rt.ExpiryIntervalMinutes) * time.Minute
	}
	if rt.ExpiryBatchSize > 0 {
		cfg.ExpiryBatchSize = rt.ExpiryBatchSize
	}
	if f.Auth.JWTSecret != "" {
		cfg.JWTSecret = f.Auth.JWTSecret
	}
	if f.HTTP.ClickRatePerSecond > 0 {
		cfg.ClickRatePerSecond = f.HTTP.ClickRatePerSecond
	}
	if f.HTTP.ClickBurst > 0 {
		cfg.ClickBurst = f.HTTP.ClickBurst
	}
	return nil
}

func parseTiers(rows []tierFile) (domain.TierTable, error) {
	out := make(domain.TierTable, 0, len(rows))
	for _, row := range rows {
		fee, err := decimal.NewFromString(row.FlatFee)
		if err != nil {
			return nil, fmt.Errorf("tier %q flat_fee: %w", row.Name, err)
		}
		pct, err := decimal.NewFromString(row.RevenueSharePercent)
		if err != nil {
			return nil, fmt.Errorf("tier %q revenue_share_percent: %w", row.Name, err)
		}
		out = append(out, domain.Tier{Name: row.Name, MinReferrals: row.MinReferrals, FlatFee: fee, RevenueSharePercent: pct})
	}
	return out, nil
}

func parseMilestones(rows []milestoneFile) (domain.MilestoneCatalog, error) {
	out := make(domain.MilestoneCatalog, 0, len(rows))
	for _, row := range rows {
		bonus, err := decimal.NewFromString(row.BonusAmount)
		if err != nil {
			return nil, fmt.Errorf("milestone %q bonus_amount: %w", row.ID, err)
		}
		out = append(out, domain.Milestone{MilestoneID: row.ID, Name: row.Name, ReferralsRequired: row.ReferralsRequired, BonusAmount: bonus})
	}
	return out, nil
}

func applyEnv(cfg *Config) error {
	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.PublicBaseURL = envOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = int32(envInt("DATABASE_MAX_CONNS", int(cfg.DBMaxConns)))
	cfg.AutoMigrate = envBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.InputTopics = envCSV("KAFKA_INPUT_TOPICS", cfg.InputTopics)
	cfg.DLQTopic = envOrDefault("KAFKA_DLQ_TOPIC", cfg.DLQTopic)
	cfg.DefaultCookieDays = envInt("DEFAULT_COOKIE_DAYS", cfg.DefaultCookieDays)
	cfg.ReferralGracePeriod = time.Duration(envInt("REFERRAL_GRACE_DAYS", int(cfg.ReferralGracePeriod.Hours()/24))) * 24 * time.Hour
	cfg.OngoingRevenueShare = envBool("ONGOING_REVENUE_SHARE", cfg.OngoingRevenueShare)
	cfg.LeaderboardSize = envInt("LEADERBOARD_SIZE", cfg.LeaderboardSize)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.OutboxFlushInterval = time.Duration(envInt("OUTBOX_FLUSH_SECONDS", int(cfg.OutboxFlushInterval.Seconds()))) * time.Second
	cfg.OutboxFlushBatchSize = envInt("OUTBOX_FLUSH_BATCH_SIZE", cfg.OutboxFlushBatchSize)
	cfg.OutboxMaxAttempts = envInt("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.ExpiryInterval = time.Duration(envInt("EXPIRY_INTERVAL_MINUTES", int(cfg.ExpiryInterval.Minutes()))) * time.Minute
	cfg.ExpiryBatchSize = envInt("EXPIRY_BATCH_SIZE", cfg.ExpiryBatchSize)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.ClickRatePerSecond = envFloat("CLICK_RATE_PER_SECOND", cfg.ClickRatePerSecond)
	cfg.ClickBurst = envInt("CLICK_BURST", cfg.ClickBurst)
	if raw := os.Getenv("DEFAULT_MINIMUM_PAYOUT"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("DEFAULT_MINIMUM_PAYOUT: %w", err)
		}
		cfg.DefaultMinimumPayout = v
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		problems = append(problems, "ports must be positive")
	}
	if err := c.Tiers.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Milestones.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.DefaultCookieDays < domain.MinCookieDurationDays || c.DefaultCookieDays > domain.MaxCookieDurationDays {
		problems = append(problems, fmt.Sprintf("default cookie days must be between %d and %d", domain.MinCookieDurationDays, domain.MaxCookieDurationDays))
	}
	if c.MinimumPayoutFloor.IsNegative() {
		problems = append(problems, "minimum payout floor must not be negative")
	}
	if !c.DefaultMinimumPayout.IsPositive() || c.DefaultMinimumPayout.LessThan(c.MinimumPayoutFloor) {
		problems = append(problems, "default minimum payout must be positive and at least the floor")
	}
	if c.ReferralGracePeriod <= 0 {
		problems = append(problems, "referral grace period must be positive")
	}
	if len(c.KafkaBrokers) > 0 && (c.ConsumerGroup == "" || len(c.InputTopics) == 0) {
		problems = append(problems, "kafka needs a consumer group and input topics")
	}
	// Without a secret the authenticator trusts actor headers, which is only
	// acceptable for the in-memory local mode.
	if c.DatabaseURL != "" && strings.TrimSpace(c.JWTSecret) == "" {
		problems = append(problems, "jwt secret is required when a database is configured")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envOrDefault(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
