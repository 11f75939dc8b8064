package common

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	WhatsApp WhatsAppConfig
	Ledger   LedgerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Store    StoreConfig
	Sink     SinkConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Queue    QueueConfig
	Receipt  ReceiptConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr      string
	GRPCAddr      string
	PublicBaseURL string
	LogLevel      string
}

// WhatsAppConfig selects the messaging provider and holds its credentials.
type WhatsAppConfig struct {
	Provider string // "twilio" | "cloud"

	TwilioSID  string
	TwilioAuth string
	TwilioFrom string
	TwilioURL  string

	// TwilioWebhookURL is the public URL configured in Twilio, used to check
	// X-Twilio-Signature. Derived from each request when empty.
	TwilioWebhookURL string

	CloudToken         string
	CloudPhoneNumberID string
	CloudVerifyToken   string
	CloudAppSecret     string
	CloudGraphURL      string

	HTTPTimeout time.Duration
}

// LedgerConfig selects the submission ledger backend.
type LedgerConfig struct {
	Backend   string        // "memory" | "redis" | "sql"
	Retention time.Duration // 0 keeps entries forever
	Namespace string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// StoreConfig selects where proofs and rendered receipts are kept.
type StoreConfig struct {
	Backend     string // "fs" | "minio"
	UploadsDir  string
	ReceiptsDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseTLS    bool
	MinioBucket    string
	MinioURLExpiry time.Duration
}

// SinkConfig selects the audit sink.
type SinkConfig struct {
	Backend      string // "xlsx" | "sql" | "kafka"
	XLSXPath     string
	XLSXSheet    string
	KafkaBrokers []string
	KafkaTopic   string
}

// ExtractConfig selects the data-extraction collaborator.
type ExtractConfig struct {
	Mode          string // "none" | "ocr" | "llm"
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	WorkDir       string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds per-call deadlines and behavior flags.
type PipelineConfig struct {
	FetchTimeout   time.Duration
	StoreTimeout   time.Duration
	ExtractTimeout time.Duration
	RenderTimeout  time.Duration
	NotifyTimeout  time.Duration
	SinkTimeout    time.Duration
	FailureNotice  bool
}

// QueueConfig sizes the async worker queue.
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
	EnqueueWait    time.Duration
}

// ReceiptConfig holds receipt branding.
type ReceiptConfig struct {
	BusinessName string
	ContactLine  string
	Timezone     string
	IDPrefix     string
}

// LoadConfig loads configuration from environment variables, reading a local
// .env file first when one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			HTTPAddr:      getEnv("HTTP_ADDR", ":3000"),
			GRPCAddr:      getEnv("GRPC_ADDR", ":8080"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", getEnv("APP_URL", "")), "/"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
		},
		WhatsApp: WhatsAppConfig{
			Provider:           strings.ToLower(getEnv("WHATSAPP_PROVIDER", "twilio")),
			TwilioSID:          getEnv("TWILIO_SID", ""),
			TwilioAuth:         getEnv("TWILIO_AUTH", ""),
			TwilioFrom:         getEnv("TWILIO_FROM", "+14155238886"),
			TwilioURL:          getEnv("TWILIO_API_URL", "https://api.twilio.com/2010-04-01"),
			TwilioWebhookURL:   getEnv("TWILIO_WEBHOOK_URL", ""),
			CloudToken:         getEnv("WA_TOKEN", ""),
			CloudPhoneNumberID: getEnv("WA_PHONE_NUMBER_ID", ""),
			CloudVerifyToken:   getEnv("WA_VERIFY_TOKEN", ""),
			CloudAppSecret:     getEnv("WA_APP_SECRET", ""),
			CloudGraphURL:      getEnv("WA_GRAPH_URL", "https://graph.facebook.com/v20.0"),
			HTTPTimeout:        getEnvAsDuration("WHATSAPP_HTTP_TIMEOUT", 30*time.Second),
		},
		Ledger: LedgerConfig{
			Backend:   strings.ToLower(getEnv("LEDGER_BACKEND", "memory")),
			Retention: getEnvAsDuration("LEDGER_RETENTION", 0),
			Namespace: getEnv("LEDGER_NAMESPACE", "proofs"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:proof-receipts.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Timeout:  getEnvAsDuration("REDIS_TIMEOUT", 3*time.Second),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", "fs")),
			UploadsDir:     getEnv("UPLOADS_DIR", "/tmp/uploads"),
			ReceiptsDir:    getEnv("RECEIPTS_DIR", "/tmp/recibos"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioUseTLS:    getEnvAsBool("MINIO_USE_TLS", true),
			MinioBucket:    getEnv("MINIO_BUCKET", "proof-receipts"),
			MinioURLExpiry: getEnvAsDuration("MINIO_URL_EXPIRY", 24*time.Hour),
		},
		Sink: SinkConfig{
			Backend:      strings.ToLower(getEnv("SINK_BACKEND", "xlsx")),
			XLSXPath:     getEnv("SINK_XLSX_PATH", "operaciones.xlsx"),
			XLSXSheet:    getEnv("SINK_XLSX_SHEET", "Operaciones"),
			KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "receipts.operations"),
		},
		Extract: ExtractConfig{
			Mode:          strings.ToLower(getEnv("EXTRACTOR", "ocr")),
			Tesseract:     getEnv("TESSERACT", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "spa"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			WorkDir:       getEnv("ARTIFACT_CACHE_DIR", ""),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			FetchTimeout:   getEnvAsDuration("PIPELINE_FETCH_TIMEOUT", 20*time.Second),
			StoreTimeout:   getEnvAsDuration("PIPELINE_STORE_TIMEOUT", 15*time.Second),
			ExtractTimeout: getEnvAsDuration("PIPELINE_EXTRACT_TIMEOUT", 60*time.Second),
			RenderTimeout:  getEnvAsDuration("PIPELINE_RENDER_TIMEOUT", 15*time.Second),
			NotifyTimeout:  getEnvAsDuration("PIPELINE_NOTIFY_TIMEOUT", 20*time.Second),
			SinkTimeout:    getEnvAsDuration("PIPELINE_SINK_TIMEOUT", 15*time.Second),
			FailureNotice:  getEnvAsBool("PIPELINE_FAILURE_NOTICE", true),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
			EnqueueWait:    getEnvAsDuration("QUEUE_ENQUEUE_WAIT", 2*time.Second),
		},
		Receipt: ReceiptConfig{
			BusinessName: getEnv("BUSINESS_NAME", "Arcángel Funeraria"),
			ContactLine:  getEnv("BUSINESS_CONTACT", ""),
			Timezone:     getEnv("RECEIPT_TIMEZONE", "America/Caracas"),
			IDPrefix:     getEnv("OPERATION_ID_PREFIX", "ARC"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var idPrefixPattern = regexp.MustCompile(`^[A-Za-z0-9-]*$`)

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()

	v.Field("WHATSAPP_PROVIDER", c.WhatsApp.Provider, OneOf("twilio", "cloud"))
	switch c.WhatsApp.Provider {
	case "twilio":
		v.Field("TWILIO_SID", c.WhatsApp.TwilioSID, Required)
		v.Field("TWILIO_AUTH", c.WhatsApp.TwilioAuth, Required)
	case "cloud":
		v.Field("WA_TOKEN", c.WhatsApp.CloudToken, Required)
		v.Field("WA_PHONE_NUMBER_ID", c.WhatsApp.CloudPhoneNumberID, Required)
		v.Field("WA_APP_SECRET", c.WhatsApp.CloudAppSecret, Required)
	}
	v.Field("OPERATION_ID_PREFIX", c.Receipt.IDPrefix, Required, Matches(idPrefixPattern, "may only contain letters, digits and '-'"))

	v.Field("LEDGER_BACKEND", c.Ledger.Backend, OneOf("memory", "redis", "sql"))
	v.Field("STORE_BACKEND", c.Store.Backend, OneOf("fs", "minio"))
	v.Field("SINK_BACKEND", c.Sink.Backend, OneOf("xlsx", "sql", "kafka"))
	v.Field("EXTRACTOR", c.Extract.Mode, OneOf("none", "ocr", "llm"))

	if c.Ledger.Backend == "sql" || c.Sink.Backend == "sql" {
		v.Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "sqlite"))
		v.Field("DB_URL", c.Database.DSN, Required)
	}
	if c.Store.Backend == "fs" {
		// receipts must be reachable by the provider's media transport
		v.Field("PUBLIC_BASE_URL", c.Server.PublicBaseURL, Required)
	}
	if c.Store.Backend == "minio" {
		v.Field("MINIO_ENDPOINT", c.Store.MinioEndpoint, Required)
		v.Field("MINIO_BUCKET", c.Store.MinioBucket, Required)
	}
	if c.Sink.Backend == "kafka" {
		v.Field("KAFKA_BROKERS", strings.Join(c.Sink.KafkaBrokers, ","), Required)
		v.Field("KAFKA_TOPIC", c.Sink.KafkaTopic, Required)
	}
	if c.Extract.Mode == "llm" {
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	}

	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
