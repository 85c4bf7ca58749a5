package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TrendSentinel/internal/logger"
	"TrendSentinel/internal/retry"
	"TrendSentinel/internal/runner"
	"TrendSentinel/internal/strategy"
)

const dateLayout = "2006-01-02"

// DefaultTickers is the JSE universe scanned when no tickers are configured.
var DefaultTickers = []string{
	"ABG.JO", "ADH.JO", "AEL.JO", "AFE.JO", "AFH.JO", "AFT.JO", "AGL.JO", "AHR.JO", "AIP.JO", "ANG.JO", "ANH.JO", "APN.JO", "ARI.JO",
	"ARL.JO", "ATT.JO", "AVI.JO", "BAW.JO", "BHG.JO", "BID.JO", "BLU.JO", "BOX.JO", "BTI.JO", "BTN.JO", "BVT.JO", "BYI.JO", "CFR.JO", "CLS.JO",
	"CML.JO", "COH.JO", "CPI.JO", "CSB.JO", "DCP.JO", "DRD.JO", "DSY.JO", "DTC.JO", "EMI.JO", "EQU.JO", "EXX.JO", "FBR.JO", "FFB.JO", "FSR.JO",
	"FTB.JO", "GFI.JO", "GLN.JO", "GND.JO", "GRT.JO", "HAR.JO", "HCI.JO", "HDC.JO", "HMN.JO", "HYP.JO", "IMP.JO", "INL.JO", "INP.JO", "ITE.JO",
	"JSE.JO", "KAP.JO", "KIO.JO", "KRO.JO", "KST.JO", "LHC.JO", "LTE.JO", "MCG.JO", "MKR.JO", "MNP.JO", "MRP.JO", "MSP.JO", "MTH.JO", "MTM.JO",
	"MTN.JO", "N91.JO", "NED.JO", "NPH.JO", "NPN.JO", "NRP.JO", "NTC.JO", "NY1.JO", "OCE.JO", "OMN.JO", "OMU.JO", "OUT.JO", "PAN.JO", "PHP.JO",
	"PIK.JO", "PMR.JO", "PPC.JO", "PPH.JO", "PRX.JO", "QLT.JO", "RBX.JO", "RCL.JO", "RDF.JO", "REM.JO", "RES.JO", "RLO.JO", "RNI.JO", "S32.JO",
	"SAC.JO", "SAP.JO", "SBK.JO", "SHC.JO", "SHP.JO", "SLM.JO", "SNT.JO", "SOL.JO", "SPG.JO", "SPP.JO", "SRE.JO", "SRI.JO", "SSS.JO",
	"SSU.JO", "SSW.JO", "SUI.JO", "TBS.JO", "TFG.JO", "TGA.JO", "TKG.JO", "TRU.JO", "TSG.JO", "VAL.JO", "VKE.JO", "VOD.JO", "WBC.JO", "WHL.JO",
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider    string        `yaml:"provider" validate:"omitempty,oneof=yahoo vstrader mock"`
		BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey      string        `yaml:"api_key"`
		MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gte=1,lte=10"`
		Backoff     time.Duration `yaml:"backoff" default:"1s"`
	} `yaml:"data_source"`
	Signal struct {
		Tickers     []string `yaml:"tickers" validate:"dive,required"`
		StartDate   string   `yaml:"start_date" default:"2024-01-01" validate:"datetime=2006-01-02"`
		EndDate     string   `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
		FastSpan    int      `yaml:"fast_span" default:"16" validate:"gte=1"`
		SlowSpan    int      `yaml:"slow_span" validate:"gte=0"` // 0 means 4 x fast_span
		VolLookback int      `yaml:"vol_lookback" default:"25" validate:"gte=1"`
		CapMin      float64  `yaml:"cap_min" default:"-20"`
		CapMax      float64  `yaml:"cap_max" default:"20"`
	} `yaml:"signal"`
	Runner struct {
		Workers int           `yaml:"workers" default:"1" validate:"gte=1,lte=32"`
		Delay   time.Duration `yaml:"delay" default:"200ms"`
	} `yaml:"runner"`
	Output struct {
		Dir    string `yaml:"dir" default:"ewmac_charts" validate:"required"`
		Charts bool   `yaml:"charts" default:"true"`
		DPI    int    `yaml:"dpi" default:"300" validate:"gte=30,lte=600"`
	} `yaml:"output"`
	Schedule struct {
		Cron       string `yaml:"cron"` // empty runs once and exits
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/trend_sentinel.db"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies environment variable overrides.
// Tag defaults are applied first so that explicit zero values in the file survive.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if len(cfg.Signal.Tickers) == 0 {
		cfg.Signal.Tickers = append([]string(nil), DefaultTickers...)
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
		if cfg.DataSource.BaseURL != "" {
			cfg.DataSource.Provider = "vstrader"
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("EWMAC_TICKERS"); v != "" {
		c.Signal.Tickers = splitList(v)
	}
	if v := os.Getenv("EWMAC_START_DATE"); v != "" {
		c.Signal.StartDate = v
	}
	if v := os.Getenv("EWMAC_END_DATE"); v != "" {
		c.Signal.EndDate = v
	}
	if v := os.Getenv("EWMAC_CRON"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field constraints and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.DataSource.Provider == "vstrader" && c.DataSource.BaseURL == "" {
		return errors.New("data_source.base_url is required for the vstrader provider")
	}
	if _, err := c.RunConfig(); err != nil {
		return err
	}
	return nil
}

// TelegramEnabled reports whether a bot is configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// StrategyConfig returns the pipeline parameters; a zero slow span becomes 4 x fast span.
func (c *Config) StrategyConfig() strategy.Config {
	slow := c.Signal.SlowSpan
	if slow == 0 {
		slow = 4 * c.Signal.FastSpan
	}
	return strategy.Config{
		FastSpan:    c.Signal.FastSpan,
		SlowSpan:    slow,
		VolLookback: c.Signal.VolLookback,
		CapMin:      c.Signal.CapMin,
		CapMax:      c.Signal.CapMax,
	}
}

// RunConfig converts the file configuration into the immutable batch description.
func (c *Config) RunConfig() (runner.Config, error) {
	sc := c.StrategyConfig()
	if err := sc.Validate(); err != nil {
		return runner.Config{}, fmt.Errorf("signal: %w", err)
	}
	start, err := time.Parse(dateLayout, c.Signal.StartDate)
	if err != nil {
		return runner.Config{}, fmt.Errorf("signal.start_date: %w", err)
	}
	var end time.Time
	if c.Signal.EndDate != "" {
		if end, err = time.Parse(dateLayout, c.Signal.EndDate); err != nil {
			return runner.Config{}, fmt.Errorf("signal.end_date: %w", err)
		}
		if !end.After(start) {
			return runner.Config{}, fmt.Errorf("signal.end_date %s must be after start_date %s", c.Signal.EndDate, c.Signal.StartDate)
		}
	}
	return runner.Config{
		Tickers:   append([]string(nil), c.Signal.Tickers...),
		Start:     start,
		End:       end,
		Strategy:  sc,
		Workers:   c.Runner.Workers,
		Delay:     c.Runner.Delay,
		OutputDir: c.Output.Dir,
		Charts:    c.Output.Charts,
	}, nil
}

// RetryPolicy returns the data source retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Default
	p.MaxAttempts = c.DataSource.MaxAttempts
	p.Backoff = c.DataSource.Backoff
	return p
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}
