package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"11000"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT,required"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"require"`
}

type GmailConfig struct {
	UserEmail    string `env:"GMAIL_USER_EMAIL,required"`
	ClientID     string `env:"GMAIL_CLIENT_ID,required"`
	ClientSecret string `env:"GMAIL_CLIENT_SECRET,required"`
	RefreshToken string `env:"GMAIL_REFRESH_TOKEN,required"`
	// PubSubTopic is the fully qualified Cloud Pub/Sub topic push notifications go to,
	// e.g. projects/my-project/topics/gmail-notifications
	PubSubTopic string `env:"GMAIL_PUBSUB_TOPIC,required"`
}

type OpenAIConfig struct {
	APIKey      string `env:"OPENAI_API_KEY,required"`
	APIBase     string `env:"OPENAI_API_BASE" envDefault:"https://api.openai.com/v1"`
	Model       string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	VisionModel string `env:"OPENAI_VISION_MODEL" envDefault:"gpt-4o"`
}

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	GmailConfig    *GmailConfig
	OpenAIConfig   *OpenAIConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		GmailConfig:    &GmailConfig{},
		OpenAIConfig:   &OpenAIConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading rfpstack config: %v", err)
	}

	return config, nil
}
