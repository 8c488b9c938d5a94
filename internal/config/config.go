package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Config holds all application configuration, read from environment
// variables with defaults.
//
// Environment Variables:
// Oracle:
// - ORACLE_PROVIDER: openai or gemini (default: openai)
// - LLM_API_KEY: API key for the OpenAI-compatible endpoint (required for openai)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT, LLM_SITE_URL, LLM_APP_NAME
// - GEMINI_API_KEY, GEMINI_MODEL (default: gemini-1.5-flash)
//
// OCR and segmentation:
// - OCR_COMMAND (tesseract), OCR_PAGE_SEG_MODE (6), OCR_PROFILE (auto), OCR_DETECT_SAMPLES (5)
// - SEGMENT_MIN_LENGTH (3), SEGMENT_SIMILARITY (0.8), SEGMENT_FRAME_SKIP (5)
//
// Translation:
// - TARGET_LANGUAGE (vi), SOURCE_LANGUAGE (auto), BRIDGE_LANGUAGE (en)
// - TRANSLATE_BATCH_SIZE (20), SCRIPT_THRESHOLD (0.4)
//
// Files, persistence and storage:
//   - WORK_DIR (tempsrt), OUTPUT_DIR (tempvideo), DATA_DIR (/app/data), SETTINGS_FILE
//   - DB_DRIVER (sqlite or postgres), DB_DSN
//   - MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_USE_SSL, MINIO_REGION,
//     MINIO_VIDEO_BUCKET, MINIO_SUBTITLE_BUCKET
//
// Intake and runtime:
// - INBOX_DIR, CRON_EXPR (*/10 * * * *), AMQP_URL, AMQP_QUEUE (video.subtitle.cmd)
// - HTTP_ADDR (:8080), WORKER_COUNT (1), LOG_LEVEL (info)
type Config struct {
	Oracle    OracleConfig    `json:"oracle"`
	LLM       LLMConfig       `json:"llm"`
	Gemini    GeminiConfig    `json:"gemini"`
	OCR       OCRConfig       `json:"ocr"`
	Segment   SegmentConfig   `json:"segment"`
	Translate TranslateConfig `json:"translate"`
	System    SystemConfig    `json:"system"`
	DB        DBConfig        `json:"db"`
	Storage   StorageConfig   `json:"storage"`
	Intake    IntakeConfig    `json:"intake"`
	HTTP      HTTPConfig      `json:"http"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type OracleConfig struct {
	Provider string `json:"provider"`
}

// LLMConfig configures the OpenAI-compatible chat client
type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

type GeminiConfig struct {
	APIKey string `json:"-"`
	Model  string `json:"model"`
}

type OCRConfig struct {
	Command       string `json:"command"`
	PageSegMode   int    `json:"page_seg_mode"`
	Profile       string `json:"profile"` // "auto" detects per video
	DetectSamples int    `json:"detect_samples"`
}

type SegmentConfig struct {
	MinLength  int     `json:"min_length"`
	Similarity float64 `json:"similarity"`
	FrameSkip  int     `json:"frame_skip"`
}

type TranslateConfig struct {
	TargetLanguage  language.Tag `json:"target_language"`
	SourceLanguage  string       `json:"source_language"`
	BridgeLanguage  language.Tag `json:"bridge_language"`
	BatchSize       int          `json:"batch_size"`
	ScriptThreshold float64      `json:"script_threshold"`
}

type SystemConfig struct {
	WorkDir      string `json:"work_dir"`
	OutputDir    string `json:"output_dir"`
	DataDir      string `json:"data_dir"`
	SettingsFile string `json:"settings_file"`
	WorkerCount  int    `json:"worker_count"`
	LogLevel     string `json:"log_level"`
}

type DBConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"-"`
}

// StorageConfig configures MinIO; storage is off without an endpoint
type StorageConfig struct {
	Endpoint       string `json:"endpoint"`
	AccessKey      string `json:"-"`
	SecretKey      string `json:"-"`
	UseSSL         bool   `json:"use_ssl"`
	Region         string `json:"region"`
	VideoBucket    string `json:"video_bucket"`
	SubtitleBucket string `json:"subtitle_bucket"`
}

func (c StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

type IntakeConfig struct {
	InboxDir  string `json:"inbox_dir"`
	CronExpr  string `json:"cron_expr"`
	AMQPURL   string `json:"-"`
	AMQPQueue string `json:"amqp_queue"`
	// render options applied to jobs found in the inbox
	BurnIn   bool `json:"burn_in"`
	Compress bool `json:"compress"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// Load reads envFile into the environment when it exists and then builds the
// config. Variables already set win over the file.
func Load(envFile string, opts ...Option) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "/app/data")
	config := &Config{
		Oracle: OracleConfig{
			Provider: strings.ToLower(getEnvString("ORACLE_PROVIDER", ProviderOpenAI)),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnvString("GEMINI_API_KEY", ""),
			Model:  getEnvString("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		OCR: OCRConfig{
			Command:       getEnvString("OCR_COMMAND", "tesseract"),
			PageSegMode:   getEnvInt("OCR_PAGE_SEG_MODE", 6),
			Profile:       getEnvString("OCR_PROFILE", "auto"),
			DetectSamples: getEnvInt("OCR_DETECT_SAMPLES", 5),
		},
		Segment: SegmentConfig{
			MinLength:  getEnvInt("SEGMENT_MIN_LENGTH", 3),
			Similarity: getEnvFloat("SEGMENT_SIMILARITY", 0.8),
			FrameSkip:  getEnvInt("SEGMENT_FRAME_SKIP", 5),
		},
		Translate: TranslateConfig{
			TargetLanguage:  getEnvLanguage("TARGET_LANGUAGE", language.Vietnamese),
			SourceLanguage:  getEnvString("SOURCE_LANGUAGE", "auto"),
			BridgeLanguage:  getEnvLanguage("BRIDGE_LANGUAGE", language.English),
			BatchSize:       getEnvInt("TRANSLATE_BATCH_SIZE", 20),
			ScriptThreshold: getEnvFloat("SCRIPT_THRESHOLD", 0.4),
		},
		System: SystemConfig{
			WorkDir:      getEnvString("WORK_DIR", "tempsrt"),
			OutputDir:    getEnvString("OUTPUT_DIR", "tempvideo"),
			DataDir:      dataDir,
			SettingsFile: getEnvString("SETTINGS_FILE", filepath.Join(dataDir, "settings.json")),
			WorkerCount:  getEnvInt("WORKER_COUNT", 1),
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Driver: strings.ToLower(getEnvString("DB_DRIVER", "sqlite")),
			DSN:    getEnvString("DB_DSN", ""),
		},
		Storage: StorageConfig{
			Endpoint:       getEnvString("MINIO_ENDPOINT", ""),
			AccessKey:      getEnvString("MINIO_ACCESS_KEY", ""),
			SecretKey:      getEnvString("MINIO_SECRET_KEY", ""),
			UseSSL:         getEnvBool("MINIO_USE_SSL", false),
			Region:         getEnvString("MINIO_REGION", ""),
			VideoBucket:    getEnvString("MINIO_VIDEO_BUCKET", "videos"),
			SubtitleBucket: getEnvString("MINIO_SUBTITLE_BUCKET", "subtitles"),
		},
		Intake: IntakeConfig{
			InboxDir:  getEnvString("INBOX_DIR", ""),
			CronExpr:  getEnvString("CRON_EXPR", "*/10 * * * *"),
			AMQPURL:   getEnvString("AMQP_URL", ""),
			AMQPQueue: getEnvString("AMQP_QUEUE", "video.subtitle.cmd"),
			BurnIn:    getEnvBool("INTAKE_BURN_IN", true),
			Compress:  getEnvBool("INTAKE_COMPRESS", false),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.DB.DSN == "" && config.DB.Driver == "sqlite" {
		config.DB.DSN = filepath.Join(config.System.DataDir, "hardsub.db")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.Oracle.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown ORACLE_PROVIDER %q", c.Oracle.Provider)
	}

	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver)
	}

	if c.Segment.Similarity < 0 || c.Segment.Similarity > 1 {
		return fmt.Errorf("SEGMENT_SIMILARITY must be within [0, 1]")
	}
	if c.Translate.ScriptThreshold < 0 || c.Translate.ScriptThreshold > 1 {
		return fmt.Errorf("SCRIPT_THRESHOLD must be within [0, 1]")
	}
	if c.System.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}
