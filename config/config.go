package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de stakebot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Feed     FeedConfig     `yaml:"feed"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`

	// StrategiesFile apunta a un YAML con la lista de estrategias. Relativo al
	// directorio del archivo de config.
	StrategiesFile string            `yaml:"strategies_file"`
	Strategies     []domain.Strategy `yaml:"strategies"`
	Investors      []domain.Investor `yaml:"investors"`
}

// EngineConfig controla el loop de ciclos y el pool de evaluación.
type EngineConfig struct {
	IntervalSeconds int  `yaml:"interval_seconds"`
	Workers         int  `yaml:"workers"`      // 0 = runtime.NumCPU()*2
	AutoAccept      bool `yaml:"auto_accept"`  // paper mode
	WeeklyReset     bool `yaml:"weekly_reset"` // reset de contadores al cambiar de semana ISO
	StartInvestors  bool `yaml:"start_investors"`
}

// FeedConfig contiene el endpoint del feed de oportunidades.
type FeedConfig struct {
	BaseURL string   `yaml:"base_url"`
	Sports  []string `yaml:"sports"`
}

// RedisConfig controla la publicación en Redis Streams. Sin Addr no se publica.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	MaxLen   int64  `yaml:"max_len"`
}

// TelegramConfig controla el notificador de Telegram. Sin token no se envía nada.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Top      int    `yaml:"top"` // recomendaciones por mensaje; 0 = 5, negativo = todas
}

// MetricsConfig controla el servidor Prometheus. Sin Addr no se exporta nada.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // p.ej. ":9102"
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if cfg.StrategiesFile != "" {
		extra, err := LoadStrategies(resolve(path, cfg.StrategiesFile))
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		cfg.Strategies = append(cfg.Strategies, extra...)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// strategiesFile es el formato de un archivo de estrategias.
type strategiesFile struct {
	Strategies []domain.Strategy `yaml:"strategies"`
}

// LoadStrategies lee definiciones de estrategias desde YAML. La validación
// (tipos, parámetros, enlaces) la hace el catálogo al registrarlas.
func LoadStrategies(path string) ([]domain.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadStrategies: read %q: %w", path, err)
	}

	var f strategiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.LoadStrategies: parse %q: %w", path, err)
	}
	return f.Strategies, nil
}

// opportunitiesFile es el formato de un batch de oportunidades fijo.
type opportunitiesFile struct {
	Opportunities []domain.Opportunity `yaml:"opportunities"`
}

// LoadOpportunities lee un batch de oportunidades desde YAML (fixtures y
// ejecuciones offline).
func LoadOpportunities(path string) ([]domain.Opportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadOpportunities: read %q: %w", path, err)
	}

	var f opportunitiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.LoadOpportunities: parse %q: %w", path, err)
	}
	return f.Opportunities, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STAKEBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 60
	}
	if cfg.Redis.MaxLen <= 0 {
		cfg.Redis.MaxLen = 10000
	}
	if cfg.Telegram.Top == 0 {
		cfg.Telegram.Top = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "stakebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	for i := range cfg.Investors {
		inv := &cfg.Investors[i]
		if inv.Name == "" {
			inv.Name = inv.ID
		}
		if inv.CurrentBalance <= 0 {
			inv.CurrentBalance = inv.StartingBalance
		}
		if inv.Status == "" {
			inv.Status = domain.InvestorStopped
		}
	}
}

// resolve interpreta rutas relativas respecto al archivo que las referencia.
func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(base), path)
}
