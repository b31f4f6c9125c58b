// Package config загружает конфигурацию AgriBot из YAML с подстановкой ENV.
//
// Порядок источников:
//  1. .env файл (если есть): только заполняет отсутствующие переменные окружения
//  2. config.yaml с ${VAR} подстановкой через os.ExpandEnv
//  3. GetDefaults() для незаполненных полей каждой секции
//
// Если файл конфигурации отсутствует, используются дефолты + ENV
// (совместимость с переменными исходного сервиса: GROQ_API_KEY, PRODUCT_SERVICE_URL и т.д.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig: корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models   ModelsConfig   `yaml:"models"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Images   ImageConfig    `yaml:"images"`
	Sessions SessionsConfig `yaml:"sessions"`
	Server   ServerConfig   `yaml:"server"`
	S3       S3Config       `yaml:"s3"`
	Journal  JournalConfig  `yaml:"journal"`
	App      AppSpecific    `yaml:"app"`
}

// ModelsConfig: настройки AI моделей.
type ModelsConfig struct {
	DefaultChat string              `yaml:"default_chat"` // Алиас модели для чата (например, "llama-3.3")
	Definitions map[string]ModelDef `yaml:"definitions"`  // Словарь определений моделей
}

// ModelDef: параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "groq", "openai" и т.д.
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // Для OpenAI-совместимых провайдеров (Groq)
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // "60s", "1m"
}

// CatalogConfig: настройки downstream product service.
type CatalogConfig struct {
	BaseURL    string `yaml:"base_url"`    // Например "http://localhost:5003/api/products"
	Timeout    string `yaml:"timeout"`     // Timeout одного запроса ("10s")
	RateLimit  int    `yaml:"rate_limit"`  // Запросов в минуту на операцию
	BurstLimit int    `yaml:"burst_limit"` // Burst для rate limiter
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *CatalogConfig) GetDefaults() CatalogConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "http://localhost:5003/api/products"
	}
	if result.Timeout == "" {
		result.Timeout = "10s"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 600
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 10
	}

	return result
}

// TimeoutDuration парсит Timeout. Невалидное значение: ошибка конфигурации.
func (c CatalogConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid catalog.timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("catalog.timeout must be positive, got %s", c.Timeout)
	}
	return d, nil
}

// ImageConfig: настройки подготовки загруженных изображений.
type ImageConfig struct {
	MaxUploadMB  int `yaml:"max_upload_mb"` // Жёсткий лимит входящего файла
	TargetMB     int `yaml:"target_mb"`     // Цель сжатия
	MaxDimension int `yaml:"max_dimension"` // Длинная сторона после ресайза
	MinQuality   int `yaml:"min_quality"`
	MaxQuality   int `yaml:"max_quality"`
	MaxProbes    int `yaml:"max_probes"` // Итерации бинарного поиска качества
	MaxPixels    int `yaml:"max_pixels"` // Лимит ширина*высота до декодирования
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ImageConfig) GetDefaults() ImageConfig {
	result := *c

	if result.MaxUploadMB == 0 {
		result.MaxUploadMB = 10
	}
	if result.TargetMB == 0 {
		result.TargetMB = 2
	}
	if result.MaxDimension == 0 {
		result.MaxDimension = 1920
	}
	if result.MinQuality == 0 {
		result.MinQuality = 10
	}
	if result.MaxQuality == 0 {
		result.MaxQuality = 95
	}
	if result.MaxProbes == 0 {
		result.MaxProbes = 8
	}
	if result.MaxPixels == 0 {
		result.MaxPixels = 50_000_000
	}

	return result
}

// SessionsConfig: настройки in-memory хранилища сессий.
type SessionsConfig struct {
	TTL               time.Duration `yaml:"ttl"`                  // Время жизни простаивающей сессии (0 = бессрочно)
	MaxSessions       int           `yaml:"max_sessions"`         // LRU лимит (0 = без лимита)
	MaxPendingImageMB int           `yaml:"max_pending_image_mb"` // Лимит ожидающего изображения
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *SessionsConfig) GetDefaults() SessionsConfig {
	result := *c

	if result.TTL == 0 {
		result.TTL = 24 * time.Hour
	}
	if result.MaxSessions == 0 {
		result.MaxSessions = 10000
	}
	if result.MaxPendingImageMB == 0 {
		result.MaxPendingImageMB = 2
	}

	return result
}

// ServerConfig: настройки HTTP слоя.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   int      `yaml:"rate_limit"` // Запросов в минуту на IP
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ServerConfig) GetDefaults() ServerConfig {
	result := *c

	if result.Addr == "" {
		result.Addr = ":5008"
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = []string{
			"http://localhost:5173",
			"http://localhost:3000",
			"http://127.0.0.1:5173",
			"*",
		}
	}
	if result.RateLimit == 0 {
		result.RateLimit = 120
	}

	return result
}

// S3Config: настройки объектного хранилища для архива загруженных фото.
// Пустой Endpoint выключает архив.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled сообщает, настроен ли архив.
func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

// JournalConfig: журнал вызовов инструментов (sqlite). Пустой Path выключает журнал.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// AppSpecific: общие настройки приложения.
type AppSpecific struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// SystemPromptFile: YAML с системным промптом (пусто = встроенный)
	SystemPromptFile string `yaml:"system_prompt_file"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Пустой path или отсутствующий файл: не ошибка: конфигурация собирается из ENV.
func Load(path string) (*AppConfig, error) {
	// 0. .env не перетирает уже заданные переменные
	_ = godotenv.Load()

	var cfg AppConfig

	if path != "" {
		rawBytes, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Работаем только на ENV
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			contentWithEnv := os.ExpandEnv(string(rawBytes))
			if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse yaml: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnv переносит переменные окружения исходного сервиса поверх пустых полей.
func (c *AppConfig) applyEnv() {
	if c.Models.Definitions == nil {
		c.Models.Definitions = make(map[string]ModelDef)
	}
	if c.Models.DefaultChat == "" {
		c.Models.DefaultChat = "default"
	}
	def := c.Models.Definitions[c.Models.DefaultChat]
	if def.APIKey == "" {
		def.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if def.BaseURL == "" {
		def.BaseURL = envOr("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	}
	if def.ModelName == "" {
		def.ModelName = envOr("LLM_MODEL", "llama-3.3-70b-versatile")
	}
	if def.Provider == "" {
		def.Provider = "groq"
	}
	c.Models.Definitions[c.Models.DefaultChat] = def

	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = os.Getenv("PRODUCT_SERVICE_URL")
	}
	if c.Catalog.Timeout == "" {
		if sec, err := strconv.Atoi(os.Getenv("AI_REQUEST_TIMEOUT")); err == nil && sec > 0 {
			c.Catalog.Timeout = fmt.Sprintf("%ds", sec)
		}
	}
	if c.Sessions.MaxPendingImageMB == 0 {
		if mb, err := strconv.Atoi(os.Getenv("AI_MAX_IMAGE_SIZE_MB")); err == nil && mb > 0 {
			c.Sessions.MaxPendingImageMB = mb
		}
	}
	if c.Server.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			c.Server.Addr = ":" + port
		}
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = os.Getenv("LOG_LEVEL")
	}
}

func (c *AppConfig) applyDefaults() {
	c.Catalog = c.Catalog.GetDefaults()
	c.Images = c.Images.GetDefaults()
	c.Sessions = c.Sessions.GetDefaults()
	c.Server = c.Server.GetDefaults()

	for name, def := range c.Models.Definitions {
		if def.MaxTokens == 0 {
			def.MaxTokens = 1024
		}
		if def.Timeout == 0 {
			def.Timeout = 60 * time.Second
		}
		c.Models.Definitions[name] = def
	}
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
		return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
	}
	if _, err := c.Catalog.TimeoutDuration(); err != nil {
		return err
	}
	if c.Images.MinQuality < 1 || c.Images.MaxQuality > 100 || c.Images.MinQuality >= c.Images.MaxQuality {
		return fmt.Errorf("images: quality bounds must satisfy 1 <= min_quality < max_quality <= 100")
	}
	if c.S3.Enabled() && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}
	return nil
}

// GetChatModel возвращает конфигурацию модели по умолчанию или по имени.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
