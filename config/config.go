package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	HTTPPort     string
	Domains      []string
	CertCacheDir string
	LogDir       string
	MaxUploadMB  int64

	// Asset store
	AssetStore          string
	AssetURLTTL         time.Duration
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	S3Bucket            string
	S3Region            string
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioUseSSL         bool
	ImageFolder         string
	AudioFolder         string

	// fal.ai
	FalKey               string
	FalQueueURL          string
	FalPollInterval      time.Duration
	BackgroundRemovalApp string
	ImageToVideoApp      string
	LipSyncApp           string

	// ElevenLabs
	ElevenLabsAPIURL  string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// Results
	ResultsDir   string
	DatabaseURL  string
	RunRetention time.Duration

	// Notifications
	ResultWebhookURL string
	TwilioAccountSid string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioToNumber   string
	KafkaBroker      string
	KafkaTopic       string
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "9887"),
		Domains:      strings.Split(getEnv("DOMAIN", "example.com"), ","),
		CertCacheDir: getEnv("CERT_CACHE_DIR", "../vibeveed_certs"),
		LogDir:       getEnv("LOG_DIR", "logs/vibeveed"),
		MaxUploadMB:  int64(getEnvAsInt("MAX_UPLOAD_MB", 16)),

		AssetStore:          getEnv("ASSET_STORE", "cloudinary"),
		AssetURLTTL:         time.Duration(getEnvAsInt("ASSET_URL_TTL", 86400)) * time.Second,
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		S3Bucket:            getEnv("AWS_BUCKET_NAME", ""),
		S3Region:            getEnv("AWS_REGION", "us-east-1"),
		MinioEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:         getEnv("MINIO_BUCKET", "vibeveed"),
		MinioUseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		ImageFolder:         getEnv("IMAGE_FOLDER", "uploaded_images"),
		AudioFolder:         getEnv("AUDIO_FOLDER", "generated_audio"),

		FalKey:               getEnv("FAL_KEY", ""),
		FalQueueURL:          getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalPollInterval:      time.Duration(getEnvAsInt("FAL_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		BackgroundRemovalApp: getEnv("FAL_BACKGROUND_REMOVAL_APP", "fal-ai/bria/background/remove"),
		ImageToVideoApp:      getEnv("FAL_IMAGE_TO_VIDEO_APP", "fal-ai/pixverse/v4.5/image-to-video/fast"),
		LipSyncApp:           getEnv("FAL_LIPSYNC_APP", "veed/lipsync"),

		ElevenLabsAPIURL:  getEnv("ELEVENLABS_API_URL", "https://api.elevenlabs.io/v1/text-to-speech"),
		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
		ElevenLabsModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_monolingual_v1"),

		ResultsDir:   getEnv("RESULTS_DIR", "processing_results"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RunRetention: time.Duration(getEnvAsInt("RUN_RETENTION", 86400)) * time.Second,

		ResultWebhookURL: getEnv("RESULT_WEBHOOK_URL", ""),
		TwilioAccountSid: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioToNumber:   getEnv("TWILIO_TO_NUMBER", ""),
		KafkaBroker:      getEnv("KAFKA_BROKER", ""),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "vibeveed.runs"),
	}
}

// MissingVendorKeys lists the credentials the pipeline cannot run without.
// Only the cloudinary keys are required when cloudinary is the asset store.
func (c Config) MissingVendorKeys() []string {
	required := map[string]string{
		"ELEVENLABS_API_KEY": c.ElevenLabsAPIKey,
		"FAL_KEY":            c.FalKey,
	}
	switch c.AssetStore {
	case "s3":
		required["AWS_BUCKET_NAME"] = c.S3Bucket
	case "minio":
		required["MINIO_ENDPOINT"] = c.MinioEndpoint
		required["MINIO_ACCESS_KEY"] = c.MinioAccessKey
		required["MINIO_SECRET_KEY"] = c.MinioSecretKey
	default:
		required["CLOUDINARY_CLOUD_NAME"] = c.CloudinaryCloudName
		required["CLOUDINARY_API_KEY"] = c.CloudinaryAPIKey
		required["CLOUDINARY_API_SECRET"] = c.CloudinaryAPISecret
	}

	var missing []string
	for _, key := range []string{
		"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
		"AWS_BUCKET_NAME", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
		"ELEVENLABS_API_KEY", "FAL_KEY",
	} {
		if value, ok := required[key]; ok && value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
