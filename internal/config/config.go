package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string   `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string   `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string   `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	AdminEmails []string `yaml:"admin_emails" env:"ADMIN_EMAILS" env-separator:","`
	HTTPServer  `yaml:"http_server"`
	Storage     Storage  `yaml:"storage"`
	Booking     Booking  `yaml:"booking"`
	Cache       Cache    `yaml:"cache"`
	Kafka       Kafka    `yaml:"kafka"`
	Identity    Identity `yaml:"identity"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Storage struct {
	QueryTimeout time.Duration `yaml:"query_timeout" env:"STORAGE_QUERY_TIMEOUT" env-default:"3s"`
	MaxOpenConns int           `yaml:"max_open_conns" env-default:"20"`
}

type Booking struct {
	Timezone      string        `yaml:"timezone" env:"BOOKING_TIMEZONE" env-default:"UTC"`
	MinHourlyRate string        `yaml:"min_hourly_rate" env-default:"5"`
	LockTTL       time.Duration `yaml:"lock_ttl" env-default:"10s"`
	LockWait      time.Duration `yaml:"lock_wait" env-default:"3s"`
}

type Cache struct {
	TutorSearchTTL time.Duration `yaml:"tutor_search_ttl" env-default:"30s"`
}

// Kafka publishing is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"tutor-events"`
}

type Identity struct {
	ProjectID       string        `yaml:"project_id" env:"FIREBASE_PROJECT_ID" env-required:"true"`
	CredentialsFile string        `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
}

// MustLoad reads CONFIG_PATH (default ./config/config.yaml). Without the file, config comes from env only.
func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("Failed to read config from env: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}

// Location resolves the booking timezone.
func (b Booking) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}
