package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	appName              = "lyrics-panel"
	DefaultSocketPath    = "/tmp/lyrics_panel.sock"
	DefaultCheckInterval = time.Second
	DefaultStatusPath    = "/tmp/lyrics"
)

func getDefaultDataDir() string {
	// 优先使用 XDG_DATA_HOME 环境变量
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 如果获取不到用户主目录，回退到当前目录
		return "lyrics_data"
	}

	return filepath.Join(homeDir, ".local", "share", appName)
}

// TomlConfig TOML配置文件结构，时长用字符串表示
type TomlConfig struct {
	App struct {
		SocketPath    string `toml:"socket_path"`
		CheckInterval string `toml:"check_interval"`
		HTTPAddr      string `toml:"http_addr"`
		Player        string `toml:"player"`
		LogLevel      string `toml:"log_level"`
		Popups        *bool  `toml:"popups"`
	} `toml:"app"`

	Store struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"store"`

	Providers struct {
		Synced            []string `toml:"synced"`
		Plain             []string `toml:"plain"`
		Timeout           string   `toml:"timeout"`
		CacheTTL          string   `toml:"cache_ttl"`
		NetEaseCookie     string   `toml:"netease_cookie"`
		NetEaseTranslated bool     `toml:"netease_translated"`
	} `toml:"providers"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Translate struct {
		Enabled     bool   `toml:"enabled"`
		Target      string `toml:"target"`
		Language    string `toml:"language"`
		DeepLURL    string `toml:"deepl_url"`
		LibreURL    string `toml:"libre_url"`
		LibreAPIKey string `toml:"libre_api_key"`
		LLMFallback *bool  `toml:"llm_fallback"`
		CacheTTL    string `toml:"cache_ttl"`
	} `toml:"translate"`

	Tencent struct {
		SecretID  string `toml:"secret_id"`
		SecretKey string `toml:"secret_key"`
		Region    string `toml:"region"`
	} `toml:"tencent"`

	Romanize struct {
		Mode string `toml:"mode"`
		LLM  bool   `toml:"llm"`
	} `toml:"romanize"`

	Panel struct {
		Synced         *bool  `toml:"synced"`
		ShowSecondLine *bool  `toml:"show_second_line"`
		PollInterval   string `toml:"poll_interval"`
		Lead           string `toml:"lead"`
		ThumbnailPx    int    `toml:"thumbnail_px"`
		ShowThumbnail  bool   `toml:"show_thumbnail"`
		Landscape      bool   `toml:"landscape"`
		HasTrailing    bool   `toml:"has_trailing"`
	} `toml:"panel"`

	StatusBar struct {
		Path    string `toml:"path"`
		Process string `toml:"process"`
		Signal  *int   `toml:"signal"`
	} `toml:"statusbar"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath    string        `validate:"required"`
	CheckInterval time.Duration `validate:"gt=0"`
	HTTPAddr      string        `validate:"omitempty,hostname_port"`
	Player        string
	LogLevel      string `validate:"oneof=trace debug info warn error"`
	Popups        bool
}

// StoreConfig 歌词存储
type StoreConfig struct {
	Driver string `validate:"oneof=bolt sqlite"`
	Path   string `validate:"required"`
}

// ProvidersConfig 歌词提供商回退链
type ProvidersConfig struct {
	Synced            []string      `validate:"min=1,dive,oneof=lrclib kugou netease innertube"`
	Plain             []string      `validate:"min=1,dive,oneof=lrclib kugou netease innertube"`
	Timeout           time.Duration `validate:"gt=0"`
	CacheTTL          time.Duration `validate:"gte=0"`
	NetEaseCookie     string
	NetEaseTranslated bool
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string `validate:"omitempty,url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int `validate:"gte=0"`
}

// TranslateConfig 翻译配置
type TranslateConfig struct {
	Enabled     bool
	Target      string `validate:"required"` // 菜单代码，default 表示 Language
	Language    string `validate:"required"`
	DeepLURL    string `validate:"url"`
	LibreURL    string `validate:"url"`
	LibreAPIKey string
	LLMFallback bool
	CacheTTL    time.Duration `validate:"gte=0"`
}

// TencentConfig 腾讯云机器翻译
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
}

// RomanizeConfig 罗马音
type RomanizeConfig struct {
	Mode string `validate:"oneof=off original translated all"`
	LLM  bool
}

// PanelConfig 面板显示
type PanelConfig struct {
	Synced         bool
	ShowSecondLine bool
	PollInterval   time.Duration `validate:"gt=0"`
	Lead           time.Duration `validate:"gte=0"`
	ThumbnailPx    int           `validate:"gte=0"`
	ShowThumbnail  bool
	Landscape      bool
	HasTrailing    bool
}

// StatusBarConfig 状态栏
type StatusBarConfig struct {
	Path    string
	Process string
	Signal  int `validate:"gte=0,lte=64"`
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Providers ProvidersConfig
	AI        AIConfig
	Redis     RedisConfig
	Translate TranslateConfig
	Tencent   TencentConfig
	Romanize  RomanizeConfig
	Panel     PanelConfig
	StatusBar StatusBarConfig
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	dataDir := getDefaultDataDir()
	return &Config{
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			CheckInterval: DefaultCheckInterval,
			HTTPAddr:      "127.0.0.1:7788",
			LogLevel:      "info",
			Popups:        true,
		},
		Store: StoreConfig{
			Driver: "bolt",
			Path:   filepath.Join(dataDir, "lyrics.db"),
		},
		Providers: ProvidersConfig{
			Synced:   []string{"lrclib", "kugou", "innertube"},
			Plain:    []string{"innertube", "lrclib"},
			Timeout:  10 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Translate: TranslateConfig{
			Target:      "default",
			Language:    "en",
			DeepLURL:    "https://www.deepl.com/en/translator",
			LibreURL:    "https://libretranslate.com",
			LLMFallback: true,
			CacheTTL:    7 * 24 * time.Hour,
		},
		Romanize: RomanizeConfig{
			Mode: "off",
		},
		Panel: PanelConfig{
			Synced:         true,
			ShowSecondLine: true,
			PollInterval:   50 * time.Millisecond,
			Lead:           50 * time.Millisecond,
		},
		StatusBar: StatusBarConfig{
			Path:    DefaultStatusPath,
			Process: "i3blocks",
			Signal:  55,
		},
	}
}

// Path 获取配置文件路径
func Path() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", appName, "config.toml")
}

// loadTomlConfig 加载TOML配置文件，不存在时返回空配置
func loadTomlConfig(path string) (*TomlConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var config TomlConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded config")
	return &config, nil
}

// Load reads path (Path() when empty) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	tomlConfig, err := loadTomlConfig(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := overlay(config, tomlConfig); err != nil {
		return nil, err
	}
	applyEnv(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if config.AI.APIKey == "" {
		log.Warn().Msg("No AI API key configured, song identification and LLM fallbacks are disabled")
	}
	return config, nil
}

func overlay(config *Config, t *TomlConfig) error {
	setString(&config.App.SocketPath, t.App.SocketPath)
	setString(&config.App.HTTPAddr, t.App.HTTPAddr)
	setString(&config.App.Player, t.App.Player)
	setString(&config.App.LogLevel, t.App.LogLevel)
	setBool(&config.App.Popups, t.App.Popups)

	setString(&config.Store.Driver, t.Store.Driver)
	setString(&config.Store.Path, t.Store.Path)

	if len(t.Providers.Synced) > 0 {
		config.Providers.Synced = t.Providers.Synced
	}
	if len(t.Providers.Plain) > 0 {
		config.Providers.Plain = t.Providers.Plain
	}
	setString(&config.Providers.NetEaseCookie, t.Providers.NetEaseCookie)
	config.Providers.NetEaseTranslated = t.Providers.NetEaseTranslated

	setString(&config.AI.ModuleName, t.AI.ModuleName)
	setString(&config.AI.APIKey, t.AI.APIKey)
	setString(&config.AI.BaseURL, t.AI.BaseURL)

	config.Redis.Enabled = t.Redis.Enabled
	setString(&config.Redis.Addr, t.Redis.Addr)
	setString(&config.Redis.Password, t.Redis.Password)
	if t.Redis.DB != 0 {
		config.Redis.DB = t.Redis.DB
	}

	config.Translate.Enabled = t.Translate.Enabled
	setString(&config.Translate.Target, t.Translate.Target)
	setString(&config.Translate.Language, t.Translate.Language)
	setString(&config.Translate.DeepLURL, t.Translate.DeepLURL)
	setString(&config.Translate.LibreURL, t.Translate.LibreURL)
	setString(&config.Translate.LibreAPIKey, t.Translate.LibreAPIKey)
	setBool(&config.Translate.LLMFallback, t.Translate.LLMFallback)

	setString(&config.Tencent.SecretID, t.Tencent.SecretID)
	setString(&config.Tencent.SecretKey, t.Tencent.SecretKey)
	setString(&config.Tencent.Region, t.Tencent.Region)

	setString(&config.Romanize.Mode, t.Romanize.Mode)
	config.Romanize.LLM = t.Romanize.LLM

	setBool(&config.Panel.Synced, t.Panel.Synced)
	setBool(&config.Panel.ShowSecondLine, t.Panel.ShowSecondLine)
	if t.Panel.ThumbnailPx != 0 {
		config.Panel.ThumbnailPx = t.Panel.ThumbnailPx
	}
	config.Panel.ShowThumbnail = t.Panel.ShowThumbnail
	config.Panel.Landscape = t.Panel.Landscape
	config.Panel.HasTrailing = t.Panel.HasTrailing

	setString(&config.StatusBar.Path, t.StatusBar.Path)
	setString(&config.StatusBar.Process, t.StatusBar.Process)
	if t.StatusBar.Signal != nil {
		config.StatusBar.Signal = *t.StatusBar.Signal
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"app.check_interval", t.App.CheckInterval, &config.App.CheckInterval},
		{"providers.timeout", t.Providers.Timeout, &config.Providers.Timeout},
		{"providers.cache_ttl", t.Providers.CacheTTL, &config.Providers.CacheTTL},
		{"translate.cache_ttl", t.Translate.CacheTTL, &config.Translate.CacheTTL},
		{"panel.poll_interval", t.Panel.PollInterval, &config.Panel.PollInterval},
		{"panel.lead", t.Panel.Lead, &config.Panel.Lead},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

// applyEnv 环境变量中的密钥优先于配置文件
func applyEnv(config *Config) {
	setString(&config.Providers.NetEaseCookie, os.Getenv("NETEASE_COOKIE"))
	setString(&config.AI.APIKey, os.Getenv("LYRICS_AI_API_KEY"))
	setString(&config.Tencent.SecretID, os.Getenv("TENCENT_SECRET_ID"))
	setString(&config.Tencent.SecretKey, os.Getenv("TENCENT_SECRET_KEY"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
