package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"signal_bot/internal/detector"
	"signal_bot/internal/indicator"
	"signal_bot/internal/risk"
)

const (
	configFilePathENV = "CONFIG_FILE"
	policyFilePathENV = "POLICY_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`
	DB      string `mapstructure:"db_dsn"`
	Service struct {
		AdminAddr string `mapstructure:"admin_addr"` // health + metrics, ":8080"
	} `mapstructure:"service"`
	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`

	Exchange struct {
		RESTBaseURL string  `mapstructure:"rest_base_url"`
		WSBaseURL   string  `mapstructure:"ws_base_url"`
		RPS         float64 `mapstructure:"rps"`   // лимит запросов к REST
		Burst       int     `mapstructure:"burst"` //
	} `mapstructure:"exchange"`

	Scanner struct {
		Interval     time.Duration `mapstructure:"interval"`      // 3m
		Workers      int           `mapstructure:"workers"`       // пул по парам
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // на один getCandles
		CandleLimit  int           `mapstructure:"candle_limit"`  // 500
	} `mapstructure:"scanner"`

	// Дефолты риска. Сколько от депозита мы готовы потерять по СТОПУ.
	Risk struct {
		RiskPct              float64       `mapstructure:"risk_pct"`       // 0.7 => 0.7% equity
		AccountEquity        float64       `mapstructure:"account_equity"` // учётный депозит, advisory-only
		MaxConcurrentSignals int           `mapstructure:"max_concurrent_signals"`
		SignalTTL            time.Duration `mapstructure:"signal_ttl"`    // 8h
		MaxHoldDuration      time.Duration `mapstructure:"max_hold"`      // 24h
		Retention            time.Duration `mapstructure:"retention"`     // 168h, безусловная чистка
		CooldownPerPair      time.Duration `mapstructure:"pair_cooldown"` // после терминального статуса
	} `mapstructure:"risk"`

	// Watchlist по умолчанию (сидится в pairs при первом старте)
	DefaultPairs []string `mapstructure:"default_pairs"`

	Timeframes struct {
		Trend   string `mapstructure:"trend"`   // 1h
		Entry   string `mapstructure:"entry"`   // 15m
		Confirm string `mapstructure:"confirm"` // 5m
	} `mapstructure:"timeframes"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile("configs/" + configFileName)
	v.SetConfigType("yaml")

	v.SetDefault("service.admin_addr", ":8080")
	v.SetDefault("exchange.rest_base_url", "https://api.binance.com")
	v.SetDefault("exchange.ws_base_url", "wss://stream.binance.com:9443")
	v.SetDefault("exchange.rps", 10.0)
	v.SetDefault("exchange.burst", 20)
	v.SetDefault("scanner.interval", "3m")
	v.SetDefault("scanner.workers", 4)
	v.SetDefault("scanner.fetch_timeout", "10s")
	v.SetDefault("scanner.candle_limit", 500)
	v.SetDefault("risk.risk_pct", 0.7)
	v.SetDefault("risk.account_equity", 10000.0)
	v.SetDefault("risk.max_concurrent_signals", 3)
	v.SetDefault("risk.signal_ttl", "8h")
	v.SetDefault("risk.max_hold", "24h")
	v.SetDefault("risk.retention", "168h")
	v.SetDefault("risk.pair_cooldown", "30m")
	v.SetDefault("default_pairs", []string{"ETHUSDC", "BNBUSDC", "XRPUSDC", "SOLUSDC", "ADAUSDC"})
	v.SetDefault("timeframes.trend", "1h")
	v.SetDefault("timeframes.entry", "15m")
	v.SetDefault("timeframes.confirm", "5m")

	if err := v.ReadInConfig(); err != nil {
		// конфиг-файл опционален: дефолты + env достаточно для локального запуска
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	return config, nil
}

// NewPolicy читает пороги детектора из configs/policy_local.yaml.
// Файла может не быть — тогда работаем на дефолтах.
func NewPolicy() (detector.Policy, error) {
	policy := detector.DefaultPolicy()

	policyFileName := os.Getenv(policyFilePathENV)
	if policyFileName == "" {
		policyFileName = "policy_local.yaml"
	}
	file, err := os.Open("configs/" + policyFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return policy, err
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(&policy); err != nil {
		return policy, err
	}
	return policy, nil
}

func NewIndicatorConfig() indicator.Config {
	return indicator.DefaultConfig()
}

func NewRiskConfig() risk.Config {
	return risk.DefaultConfig()
}
