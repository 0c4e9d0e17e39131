package config

import (
	"time"
)

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	// EncryptionKey protects mailbox passwords at rest. Must be 32 bytes.
	EncryptionKey string `env:"WARMSTACK_ENCRYPTION_KEY,required"`
}

type WarmstackDatabaseConfig struct {
	Host            string `env:"WARMSTACK_POSTGRES_HOST,required"`
	Port            string `env:"WARMSTACK_POSTGRES_PORT,required"`
	User            string `env:"WARMSTACK_POSTGRES_USER,required"`
	DBName          string `env:"WARMSTACK_POSTGRES_DB_NAME,required"`
	Password        string `env:"WARMSTACK_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"WARMSTACK_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"WARMSTACK_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"WARMSTACK_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"WARMSTACK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"WARMSTACK_POSTGRES_SSL_MODE" envDefault:"disable"`
}

type TextGenConfig struct {
	Url    string `env:"TEXTGEN_API_URL,required"`
	ApiKey string `env:"TEXTGEN_API_KEY,required"`
}

// WarmupConfig carries the pacing knobs of a warm-up session. All delays are
// configured in milliseconds so test environments can shrink them to near
// zero without code changes.
type WarmupConfig struct {
	MinDelayMs         int    `env:"WARMUP_MIN_DELAY_MS" envDefault:"180000"`
	MaxDelayMs         int    `env:"WARMUP_MAX_DELAY_MS" envDefault:"300000"`
	ReplyDelayMinMs    int    `env:"WARMUP_REPLY_DELAY_MIN_MS" envDefault:"180000"`
	ReplyDelayMaxMs    int    `env:"WARMUP_REPLY_DELAY_MAX_MS" envDefault:"300000"`
	ImapWaitTimeoutMs  int    `env:"WARMUP_IMAP_WAIT_TIMEOUT_MS" envDefault:"600000"`
	SkipDelayMs        int    `env:"WARMUP_SKIP_DELAY_MS" envDefault:"10000"`
	PollIntervalMs     int    `env:"WARMUP_POLL_INTERVAL_MS" envDefault:"30000"`
	CronScheduleWarmup string `env:"CRON_SCHEDULE_AUTO_WARMUP" envDefault:"0 8 * * *"`
}

func (c *WarmupConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

func (c *WarmupConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

func (c *WarmupConfig) ReplyDelayMin() time.Duration {
	return time.Duration(c.ReplyDelayMinMs) * time.Millisecond
}

func (c *WarmupConfig) ReplyDelayMax() time.Duration {
	return time.Duration(c.ReplyDelayMaxMs) * time.Millisecond
}

func (c *WarmupConfig) SkipDelay() time.Duration {
	return time.Duration(c.SkipDelayMs) * time.Millisecond
}

func (c *WarmupConfig) ImapWaitTimeout() time.Duration {
	return time.Duration(c.ImapWaitTimeoutMs) * time.Millisecond
}

func (c *WarmupConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
