package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
	Cache   CacheConfig   `yaml:"cache"`
	Chat    ChatConfig    `yaml:"chat"`
	Result  ResultConfig  `yaml:"result"`
	Charts  ChartsConfig  `yaml:"charts"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port          int    `yaml:"port"`
	Name          string `yaml:"name"`
	AllowedOrigin string `yaml:"allowedOrigin"`
}

// BackendConfig 推理服务配置
type BackendConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"` // 传输层超时，0 表示不限制
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig 内容缓存配置
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

// ChatConfig 聊天配置
type ChatConfig struct {
	AskPrompt       string   `yaml:"askPrompt"`
	ApologyMessage  string   `yaml:"apologyMessage"`
	ContextKeywords []string `yaml:"contextKeywords"`
	// 尚未对话时展示的建议问题
	StarterSuggestions []string `yaml:"starterSuggestions"`
}

// ResultConfig 结果渲染配置
type ResultConfig struct {
	AbsencePhrases      []string `yaml:"absencePhrases"`
	LowConfidenceBelow  float64  `yaml:"lowConfidenceBelow"`
	PredictErrorMessage string   `yaml:"predictErrorMessage"`
}

// ChartsConfig 图表尺寸
type ChartsConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	CookieName string        `yaml:"cookieName"`
	IdleTTL    time.Duration `yaml:"idleTtl"`
	ReapEvery  time.Duration `yaml:"reapEvery"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8090, Name: "neuroscan-dashboard", AllowedOrigin: "*"},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Cache: CacheConfig{TTL: 10 * time.Minute, Prefix: "neuroscan:content:"},
		Chat: ChatConfig{
			AskPrompt:       "Can you explain my scan results in simple terms?",
			ApologyMessage:  "Sorry, I'm having trouble connecting right now. Please try again in a moment.",
			ContextKeywords: []string{"result"},

			StarterSuggestions: []string{
				"What are the different types of brain tumors?",
				"How does AI detect brain tumors?",
				"What are common symptoms of brain tumors?",
				"How accurate is this AI model?",
			},
		},
		Result: ResultConfig{
			AbsencePhrases:      []string{"no tumor", "no tumour"},
			LowConfidenceBelow:  70,
			PredictErrorMessage: "Error connecting to the analysis server.",
		},
		Charts:  ChartsConfig{Width: 640, Height: 360},
		Session: SessionConfig{CookieName: "neuroscan_session", IdleTTL: 2 * time.Hour, ReapEvery: time.Minute},
		Log:     LogConfig{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
	}
}

// LoadConfig 加载配置文件，path 为空时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.baseUrl 不能为空")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port 无效: %d", c.Server.Port)
	}
	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("charts 尺寸无效: %dx%d", c.Charts.Width, c.Charts.Height)
	}
	return nil
}

// Addr 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func applyEnv(c *Config) {
	envOverride(&c.Backend.BaseURL, "NEUROSCAN_BACKEND_URL")
	envOverride(&c.Server.AllowedOrigin, "NEUROSCAN_ALLOWED_ORIGIN")
	envOverride(&c.Redis.Host, "REDIS_HOST")
	envOverride(&c.Redis.Password, "REDIS_PASSWORD")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Redis.Port, "REDIS_PORT")
	envOverrideBool(&c.Redis.Enabled, "REDIS_ENABLED")
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}
