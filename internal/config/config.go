package config

import (
	"errors"
	"fmt"
	"log"
	"maps"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"BookMentions/internal/ranking"
)

const (
	configPathEnv      = "BOOKMENTIONS_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	isbndbTokenEnv     = "ISBNDB_TOKEN"
	twitterBearerEnv   = "TWITTER_BEARER"
	alertEmailEnv      = "ALERT_EMAIL"
	minioAccessKeyEnv  = "MINIO_ACCESS_KEY"
	minioSecretKeyEnv  = "MINIO_SECRET_KEY"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	defaultSecretsKey  = "script/config/secrets.yaml"
	defaultBucket      = "bookmentions"
	defaultAWSRegion   = "us-east-1"
	defaultCountsQuery = "https://api.twitter.com/2/tweets/counts/recent?query="
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Broker    BrokerConfig    `yaml:"broker"`
	Engine    EngineConfig    `yaml:"engine"`
	Archive   ArchiveConfig   `yaml:"archive"`
	ISBNDB    ISBNDBConfig    `yaml:"isbndb"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Editions  EditionsConfig  `yaml:"editions"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig points at the S3-compatible bucket every stage shares.
type StorageConfig struct {
	Endpoint   string `yaml:"endpoint" validate:"required"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket" validate:"required"`
	UseSSL     bool   `yaml:"useSsl"`
	Root       string `yaml:"root"`
	Version    string `yaml:"version"`
	SecretsKey string `yaml:"secretsKey"`
}

// BrokerConfig names the two queues and the topics feeding them.
type BrokerConfig struct {
	Kind         string `yaml:"kind" validate:"oneof=sqs amqp"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AMQPURL      string `yaml:"amqpUrl" validate:"required_if=Kind amqp"`
	BooksetQueue string `yaml:"booksetQueue" validate:"required"`
	BookQueue    string `yaml:"bookQueue" validate:"required"`
	BooksetTopic string `yaml:"booksetTopic" validate:"required"`
	BookTopic    string `yaml:"bookTopic" validate:"required"`
	WaitSeconds  int32  `yaml:"waitSeconds" validate:"gte=0,lte=20"`
}

// EngineConfig configures the managed SQL engine.
type EngineConfig struct {
	WorkGroup    string        `yaml:"workGroup"`
	Catalog      string        `yaml:"catalog"`
	Database     string        `yaml:"database" validate:"required"`
	SourceTable  string        `yaml:"sourceTable" validate:"required"`
	PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
	PollTimeout  time.Duration `yaml:"pollTimeout" validate:"gt=0"`
}

// ArchiveConfig locates the crawl index.
type ArchiveConfig struct {
	CollInfoURL string `yaml:"collInfoUrl" validate:"omitempty,url"`
	URLPattern  string `yaml:"urlPattern"`
}

// ISBNDBConfig configures metadata enrichment.
type ISBNDBConfig struct {
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	Token     string `yaml:"token"`
	ChunkSize int    `yaml:"chunkSize" validate:"gte=1,lte=1000"`
}

// TwitterConfig configures the mention-count API and the drain loop.
type TwitterConfig struct {
	Endpoint        string        `yaml:"endpoint" validate:"required,url"`
	Bearer          string        `yaml:"bearer"`
	MaxQueryLength  int           `yaml:"maxQueryLength" validate:"gte=1,lte=512"`
	RateLimitPause  time.Duration `yaml:"rateLimitPause" validate:"gte=0"`
	RequestInterval time.Duration `yaml:"requestInterval" validate:"gte=0"`
	Rounds          int           `yaml:"rounds" validate:"gte=1"`
	BatchSize       int           `yaml:"batchSize" validate:"gte=1,lte=10"`
}

// RankingConfig tunes top-N selection and filters.
type RankingConfig struct {
	CandidateSize int            `yaml:"candidateSize" validate:"gte=1"`
	FinalSize     int            `yaml:"finalSize" validate:"gte=1,ltefield=CandidateSize"`
	Denylist      []string       `yaml:"denylist"`
	YearOverrides map[string]int `yaml:"yearOverrides"`
}

// EditionsConfig locates the curated earliest-edition list.
type EditionsConfig struct {
	ListURL  string `yaml:"listUrl" validate:"omitempty,url"`
	MaxPages int    `yaml:"maxPages" validate:"gte=1"`
}

// AlertsConfig encapsulates outbound alert channels.
type AlertsConfig struct {
	Email    string         `yaml:"email" validate:"omitempty,email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig points batch invocations at a Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl" validate:"omitempty,url"`
	Job            string `yaml:"job"`
}

// DatabaseConfig describes the run-ledger Postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DashboardConfig configures the HTTP API.
type DashboardConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	CacheTTL       time.Duration `yaml:"cacheTtl" validate:"gte=0"`
}

// SchedulerConfig defines how often the counting step runs.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// Secrets is the credentials file kept next to the data in the bucket.
type Secrets struct {
	ISBNDB struct {
		Token string `yaml:"token"`
	} `yaml:"isbndb"`
	Twitter struct {
		Bearer string `yaml:"bearer"`
	} `yaml:"twitter"`
	Email struct {
		Address string `yaml:"address"`
	} `yaml:"email"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if merged, err := mergeYAML(cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = merged
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// mergeYAML decodes raw over base, so keys absent from the file keep their
// defaults. Lists and maps present in the file replace the defaults.
func mergeYAML(base Config, raw []byte) (Config, error) {
	merged := base
	merged.Ranking.Denylist = nil
	merged.Ranking.YearOverrides = nil
	merged.Dashboard.AllowedOrigins = nil
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return base, err
	}
	if merged.Ranking.Denylist == nil {
		merged.Ranking.Denylist = base.Ranking.Denylist
	}
	if merged.Ranking.YearOverrides == nil {
		merged.Ranking.YearOverrides = base.Ranking.YearOverrides
	}
	if merged.Dashboard.AllowedOrigins == nil {
		merged.Dashboard.AllowedOrigins = base.Dashboard.AllowedOrigins
	}
	return merged, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDSNEnv, &c.Database.DSN},
		{isbndbTokenEnv, &c.ISBNDB.Token},
		{twitterBearerEnv, &c.Twitter.Bearer},
		{alertEmailEnv, &c.Alerts.Email},
		{minioAccessKeyEnv, &c.Storage.AccessKey},
		{minioSecretKeyEnv, &c.Storage.SecretKey},
		{telegramTokenEnv, &c.Alerts.Telegram.BotToken},
		{telegramChatIDEnv, &c.Alerts.Telegram.ChatID},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// ApplySecrets fills credentials still empty after file and env loading.
func (c *Config) ApplySecrets(raw []byte) error {
	var s Secrets
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}
	fill := func(target *string, v string) {
		if *target == "" {
			*target = v
		}
	}
	fill(&c.ISBNDB.Token, s.ISBNDB.Token)
	fill(&c.Twitter.Bearer, s.Twitter.Bearer)
	fill(&c.Alerts.Email, s.Email.Address)
	return nil
}

// Validate checks the struct tags and reports fields by their YAML names.
func (c Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	err := v.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{
			Endpoint:   "s3.amazonaws.com",
			Region:     defaultAWSRegion,
			Bucket:     defaultBucket,
			UseSSL:     true,
			Root:       "data",
			Version:    "cur_version",
			SecretsKey: defaultSecretsKey,
		},
		Broker: BrokerConfig{
			Kind:         "sqs",
			Region:       defaultAWSRegion,
			BooksetQueue: "prepbatch.fifo",
			BookQueue:    "prepbooks.fifo",
			BooksetTopic: "preparedbatch.fifo",
			BookTopic:    "preparedbooks.fifo",
			WaitSeconds:  1,
		},
		Engine: EngineConfig{
			WorkGroup:    "primary",
			Catalog:      "AwsDataCatalog",
			Database:     "ccindex",
			SourceTable:  "ccindex.ccindex",
			PollInterval: 2 * time.Second,
			PollTimeout:  30 * time.Minute,
		},
		Archive: ArchiveConfig{CollInfoURL: "https://index.commoncrawl.org/collinfo.json"},
		ISBNDB:  ISBNDBConfig{Endpoint: "https://api2.isbndb.com/books", ChunkSize: 1000},
		Twitter: TwitterConfig{
			Endpoint:        defaultCountsQuery,
			MaxQueryLength:  512,
			RateLimitPause:  15 * time.Second,
			RequestInterval: 500 * time.Millisecond,
			Rounds:          10,
			BatchSize:       10,
		},
		Ranking: RankingConfig{
			CandidateSize: ranking.CandidateSize,
			FinalSize:     ranking.FinalSize,
			Denylist:      slices.Clone(ranking.DefaultDenylist),
			YearOverrides: maps.Clone(ranking.DefaultYearOverrides),
		},
		Editions: EditionsConfig{
			ListURL:  "https://thegreatestbooks.org/",
			MaxPages: 20,
		},
		Metrics:   MetricsConfig{Job: "bookmentions"},
		Dashboard: DashboardConfig{Addr: ":8080", AllowedOrigins: []string{"*"}, CacheTTL: time.Hour},
		Scheduler: SchedulerConfig{Interval: 5 * time.Minute},
	}
}
