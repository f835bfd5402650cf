package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Exchange credentials
	ExchangeAPIKey     string
	ExchangeAPISecret  string
	ExchangeTOTPSecret string
	ExchangeBaseURL    string
	ExchangeWSURL      string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	JournalPath   string
	MetricsAddr   string

	// Market
	Symbol      string
	IntervalSec int

	// Order sizing and pricing
	FixedSize   float64
	SlippageTol float64

	// Signal filter
	SignalNum  int
	FastWindow int
	SlowWindow int

	RSILength    int
	RSIBuyLevel  float64
	RSISellLevel float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	KPeriod       int
	SlowingPeriod int
	DPeriod       int

	ATRLength     int
	ATRMultiplier float64

	ADXLength    int
	ADXThreshold float64

	VolumeWindow     int
	VolumeMultiplier float64

	TrailingActivationPct float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ExchangeAPIKey:     mustEnv("EXCHANGE_API_KEY"),
		ExchangeAPISecret:  mustEnv("EXCHANGE_API_SECRET"),
		ExchangeTOTPSecret: getEnv("EXCHANGE_TOTP_SECRET", ""),
		ExchangeBaseURL:    getEnv("EXCHANGE_BASE_URL", "https://api.exchange.example.com"),
		ExchangeWSURL:      getEnv("EXCHANGE_WS_URL", "wss://stream.exchange.example.com/ws"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		Symbol:      getEnv("SYMBOL", "BTCUSDT"),
		IntervalSec: getEnvInt("INTERVAL_SEC", 3600),

		FixedSize:   getEnvFloat("FIXED_SIZE", 0.01),
		SlippageTol: getEnvFloat("SLIPPAGE_TOL", 0.001),

		SignalNum:  getEnvInt("SIGNAL_NUM", 2),
		FastWindow: getEnvInt("FAST_WINDOW", 10),
		SlowWindow: getEnvInt("SLOW_WINDOW", 20),

		RSILength:    getEnvInt("RSI_LENGTH", 14),
		RSIBuyLevel:  getEnvFloat("RSI_BUY_LEVEL", 30),
		RSISellLevel: getEnvFloat("RSI_SELL_LEVEL", 70),

		MACDFast:   getEnvInt("MACD_FAST", 12),
		MACDSlow:   getEnvInt("MACD_SLOW", 26),
		MACDSignal: getEnvInt("MACD_SIGNAL", 9),

		KPeriod:       getEnvInt("K_PERIOD", 14),
		SlowingPeriod: getEnvInt("SLOWING_PERIOD", 3),
		DPeriod:       getEnvInt("D_PERIOD", 3),

		ATRLength:     getEnvInt("ATR_LENGTH", 14),
		ATRMultiplier: getEnvFloat("ATR_MULTIPLIER", 2.5),

		ADXLength:    getEnvInt("ADX_LENGTH", 14),
		ADXThreshold: getEnvFloat("ADX_THRESHOLD", 20),

		VolumeWindow:     getEnvInt("VOLUME_WINDOW", 20),
		VolumeMultiplier: getEnvFloat("VOLUME_MULTIPLIER", 1.2),

		TrailingActivationPct: getEnvFloat("TRAILING_ACTIVATION_PCT", 0.01),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s must be an integer, got %q", key, v)
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] %s must be a number, got %q", key, v)
	}
	return f
}
