// Package config loads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Object storage (S3-compatible)
	S3Endpoint string
	S3Region   string
	Bucket     string
	AccessKey  string
	SecretKey  string

	// Message queue (SQS-compatible)
	MQEndpoint string
	QueueURL   string

	// Cloud API credentials
	APIKey   string
	FolderID string

	// External service endpoints
	DiskAPIURL       string
	RecognizeURL     string
	OperationAPIBase string
	GPTAPIURL        string
	GPTModelURI      string

	// Pipeline tuning
	PollInterval     time.Duration // recognition poll interval
	RecognizeTimeout time.Duration // 0 disables the deadline
	ScratchDir       string

	// PDF rendering
	PDFFontName string
	PDFFontPath string

	// HTTP server
	ListenAddr string

	// Worker stats listener
	StatsAddr string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// Endpoint defaults match the Yandex Cloud deployment.
func Load() Config {
	return Config{
		S3Endpoint: getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
		S3Region:   getEnv("S3_REGION", "ru-central1"),
		Bucket:     getEnv("STORAGE_BUCKET", ""),
		AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),

		MQEndpoint: getEnv("MQ_ENDPOINT", "https://message-queue.api.cloud.yandex.net"),
		QueueURL:   getEnv("MQ_QUEUE_URL", ""),

		APIKey:   getEnv("YC_API_KEY", ""),
		FolderID: getEnv("YC_FOLDER_ID", ""),

		DiskAPIURL:       getEnv("DISK_API_URL", "https://cloud-api.yandex.net/v1/disk/public/resources"),
		RecognizeURL:     getEnv("RECOGNIZE_URL", "https://transcribe.api.cloud.yandex.net/speech/stt/v2/longRunningRecognize"),
		OperationAPIBase: getEnv("OPERATION_API_BASE", "https://operation.api.cloud.yandex.net/operations"),
		GPTAPIURL:        getEnv("GPT_API_URL", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"),
		GPTModelURI:      getEnv("GPT_MODEL_URI", "gpt://%s/yandexgpt"),

		PollInterval:     getDuration("STT_POLL_INTERVAL", 5*time.Second),
		RecognizeTimeout: getDuration("STT_TIMEOUT", 30*time.Minute),
		ScratchDir:       getEnv("SCRATCH_DIR", os.TempDir()),

		PDFFontName: getEnv("PDF_FONT_NAME", "deja_vu"),
		PDFFontPath: getEnv("PDF_FONT_PATH", "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		StatsAddr: getEnv("STATS_ADDR", ":8081"),

		LogFile:  getEnv("NOTEGEN_LOG_FILE", "/tmp/notegen.log"),
		LogLevel: parseLogLevel(getEnv("NOTEGEN_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	// Bare numbers are treated as seconds.
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
