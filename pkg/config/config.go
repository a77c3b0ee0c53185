package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Instagram struct {
		User       string `env:"INSTAGRAM_USER"`
		Pass       string `env:"INSTAGRAM_PASS"`
		UsersParse string `env:"INSTAGRAM_USERS_PARSE"`
		// ManualLogin pauses the login flow until an operator signals resume,
		// for challenge/2FA screens the bot cannot pass on its own.
		ManualLogin bool `env:"INSTAGRAM_MANUAL_LOGIN" env-default:"false"`
	}
	Browser struct {
		Headless       bool          `env:"BROWSER_HEADLESS" env-default:"true"`
		OpTimeout      time.Duration `env:"BROWSER_OP_TIMEOUT" env-default:"15s"`
		SettleInterval time.Duration `env:"BROWSER_SETTLE_INTERVAL" env-default:"2s"`
	}
	Storage struct {
		ArtifactDir  string `env:"STORAGE_ARTIFACT_DIR" env-default:"./videos"`
		LedgerDir    string `env:"STORAGE_LEDGER_DIR" env-default:"./ledger"`
		LedgerDriver string `env:"STORAGE_LEDGER_DRIVER" env-default:"file"`
		FfmpegPath   string `env:"STORAGE_FFMPEG_PATH" env-default:"ffmpeg"`
	}
	Parser struct {
		IntervalMin time.Duration `env:"PARSER_INTERVAL_MIN" env-default:"15m"`
		IntervalMax time.Duration `env:"PARSER_INTERVAL_MAX" env-default:"20m"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Telegram struct {
		User    int64  `env:"TELEGRAM_USER"`
		Token   string `env:"TELEGRAM_TOKEN"`
		Channel string `env:"TELEGRAM_CHANNEL"`
	}
}

// GetDSN builds the Postgres connection string for the optional database
// ledger backend.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Pass, c.Postgres.Host,
		c.Postgres.Port, c.Postgres.Name, c.Postgres.SslMode,
	)
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
