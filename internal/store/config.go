package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	ModeFullAnalysis = "full-analysis"
	ModeChartsOnly   = "charts-only"
	ModeSkipTelegram = "skip-telegram"
	ModeSkipGPT      = "skip-gpt"
)

// ValidModes lists the accepted values for Config.Mode and the -mode flag.
var ValidModes = []string{ModeFullAnalysis, ModeChartsOnly, ModeSkipTelegram, ModeSkipGPT}

type Config struct {
	Mode      string            `yaml:"mode" validate:"required,oneof=full-analysis charts-only skip-telegram skip-gpt"`
	Symbols   []string          `yaml:"symbols" validate:"required,min=1,dive,required,uppercase"`
	SymbolMap map[string]string `yaml:"symbol_map"`
	Candles   struct {
		Interval  string `yaml:"interval" validate:"required"`
		Limit     int    `yaml:"limit" validate:"gte=2,lte=1000"`
		ChartTail int    `yaml:"chart_tail" validate:"gte=2"`
	} `yaml:"candles"`
	OrderBookDepth int `yaml:"order_book_depth" validate:"oneof=5 10 20 50 100 500 1000 5000"`
	Indicators     struct {
		RSIPeriod   int     `yaml:"rsi_period" validate:"gte=1"`
		MACDFast    int     `yaml:"macd_fast" validate:"gte=1"`
		MACDSlow    int     `yaml:"macd_slow" validate:"gte=1"`
		MACDSignal  int     `yaml:"macd_signal" validate:"gte=1"`
		StochPeriod int     `yaml:"stoch_period" validate:"gte=1"`
		BBWindow    int     `yaml:"bb_window" validate:"gte=2"`
		BBStdDev    float64 `yaml:"bb_stddev" validate:"gt=0"`
		ATRPeriod   int     `yaml:"atr_period" validate:"gte=1"`
		ADXPeriod   int     `yaml:"adx_period" validate:"gte=1"`
	} `yaml:"indicators"`
	Analysis struct {
		Concurrency int `yaml:"concurrency" validate:"gte=1,lte=32"`
	} `yaml:"analysis"`
	LLM struct {
		Provider        string  `yaml:"provider" validate:"omitempty,oneof=OPENAI CLAUDE NOOP"`
		Model           string  `yaml:"model"`
		MaxTokens       int     `yaml:"max_tokens" validate:"gte=1"`
		Temperature     float32 `yaml:"temperature" validate:"gte=0,lte=2"`
		System          string  `yaml:"system"`
		MaxPromptTokens int     `yaml:"max_prompt_tokens" validate:"gte=1"`
	} `yaml:"llm"`
	Reconcile struct {
		Strategy string `yaml:"strategy" validate:"oneof=structured line"`
	} `yaml:"reconcile"`
	Telegram struct {
		BotToken     string        `yaml:"-"`
		ChatID       string        `yaml:"-"`
		MessageDelay time.Duration `yaml:"message_delay" validate:"gte=0"`
		ProxyURL     string        `yaml:"proxy_url" validate:"omitempty,url"`
	} `yaml:"telegram"`
	History struct {
		Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
		DSN    string `yaml:"dsn" validate:"required"`
	} `yaml:"history"`
	Cache struct {
		RedisAddr string        `yaml:"redis_addr"`
		TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
	} `yaml:"cache"`
	Charts struct {
		Dir string `yaml:"dir" validate:"required"`
	} `yaml:"charts"`
	Archive struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
	} `yaml:"archive"`
	News struct {
		Enabled      bool          `yaml:"enabled"`
		MaxHeadlines int           `yaml:"max_headlines" validate:"gte=0"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"news"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	AuditLog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
	} `yaml:"audit_log"`

	BinanceAPIKey    string `yaml:"-"`
	BinanceAPISecret string `yaml:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed '%s' check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return fmt.Errorf("indicators.macd_fast (%d) must be below macd_slow (%d)", c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if c.Candles.ChartTail > c.Candles.Limit {
		return fmt.Errorf("candles.chart_tail (%d) cannot exceed candles.limit (%d)", c.Candles.ChartTail, c.Candles.Limit)
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if seen[s] {
			return fmt.Errorf("symbol %s listed twice", s)
		}
		seen[s] = true
	}
	return nil
}

// SendsNotifications reports whether the configured mode publishes to Telegram.
func (c *Config) SendsNotifications() bool {
	return ModeSendsNotifications(c.Mode)
}

// CallsModel reports whether the configured mode queries the language model.
func (c *Config) CallsModel() bool {
	return ModeCallsModel(c.Mode)
}

func ModeSendsNotifications(mode string) bool {
	return mode != ModeChartsOnly && mode != ModeSkipTelegram
}

func ModeCallsModel(mode string) bool {
	return mode != ModeChartsOnly && mode != ModeSkipGPT
}

// IsValidMode reports whether mode is one of ValidModes.
func IsValidMode(mode string) bool {
	for _, m := range ValidModes {
		if m == mode {
			return true
		}
	}
	return false
}

// DefaultSymbolMap is the Binance symbol to CoinGecko id mapping used when
// the config file does not provide one.
func DefaultSymbolMap() map[string]string {
	return map[string]string{
		"BTCUSDT":   "bitcoin",
		"ETHUSDT":   "ethereum",
		"BNBUSDT":   "binancecoin",
		"XRPUSDT":   "ripple",
		"ADAUSDT":   "cardano",
		"SOLUSDT":   "solana",
		"DOTUSDT":   "polkadot",
		"DOGEUSDT":  "dogecoin",
		"MATICUSDT": "polygon",
		"LTCUSDT":   "litecoin",
		"XLMUSDT":   "stellar",
	}
}

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig is LoadConfig without the file read.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)
	applyEnv(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = ModeFullAnalysis
	}
	if len(c.SymbolMap) == 0 {
		c.SymbolMap = DefaultSymbolMap()
	}
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT", "SOLUSDT", "DOTUSDT", "DOGEUSDT", "LTCUSDT", "XLMUSDT"}
	}
	if c.Candles.Interval == "" {
		c.Candles.Interval = "15m"
	}
	if c.Candles.Limit == 0 {
		c.Candles.Limit = 50
	}
	if c.Candles.ChartTail == 0 {
		c.Candles.ChartTail = 30
	}
	if c.OrderBookDepth == 0 {
		c.OrderBookDepth = 10
	}

	ind := &c.Indicators
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = 14
	}
	if ind.MACDFast == 0 {
		ind.MACDFast = 12
	}
	if ind.MACDSlow == 0 {
		ind.MACDSlow = 26
	}
	if ind.MACDSignal == 0 {
		ind.MACDSignal = 9
	}
	if ind.StochPeriod == 0 {
		ind.StochPeriod = 14
	}
	if ind.BBWindow == 0 {
		ind.BBWindow = 20
	}
	if ind.BBStdDev == 0 {
		ind.BBStdDev = 2
	}
	if ind.ATRPeriod == 0 {
		ind.ATRPeriod = 14
	}
	if ind.ADXPeriod == 0 {
		ind.ADXPeriod = 14
	}

	if c.Analysis.Concurrency == 0 {
		c.Analysis.Concurrency = 1
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "OPENAI"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.System == "" {
		c.LLM.System = "You are a cryptocurrency trading expert."
	}
	if c.LLM.MaxPromptTokens == 0 {
		c.LLM.MaxPromptTokens = 3500
	}

	if c.Reconcile.Strategy == "" {
		c.Reconcile.Strategy = "structured"
	}
	if c.Telegram.MessageDelay == 0 {
		c.Telegram.MessageDelay = time.Second
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.History.DSN == "" {
		c.History.DSN = "database/crypto_analysis.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Charts.Dir == "" {
		c.Charts.Dir = "charts"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "archive"
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 5
	}
	if c.News.Timeout == 0 {
		c.News.Timeout = 15 * time.Second
	}
	if c.AuditLog.Dir == "" {
		c.AuditLog.Dir = "logs"
	}
}

// applyEnv overlays secrets and deployment knobs from the environment.
func applyEnv(c *Config) {
	c.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	c.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")
	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if v := os.Getenv("SYMBOLS_TO_MONITOR"); v != "" {
		var syms []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				syms = append(syms, s)
			}
		}
		c.Symbols = syms
	}
	if v := os.Getenv("CANDLESTICK_INTERVAL"); v != "" {
		c.Candles.Interval = v
	}
	if v := os.Getenv("HISTORICAL_DATA_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Candles.Limit = n
		}
	}
	if v := os.Getenv("TELEGRAM_MESSAGE_DELAY"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			c.Telegram.MessageDelay = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("HISTORY_DRIVER"); v != "" {
		c.History.Driver = v
	}
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AuditLog.RetentionDays = n
		}
	}
}
