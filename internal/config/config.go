package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string            `yaml:"env" env:"APP_ENV" env-default:"local"`
	DSN         string            `yaml:"dsn" env:"DATABASE_DSN" env-required:"true"`
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	BlobStore   BlobStoreConfig   `yaml:"blob_store"`
	FileStorage FileStorageConfig `yaml:"file_storage"`
	Redis       RedisConf         `yaml:"redis"`
	Cache       CacheConfig       `yaml:"cache"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BodyLimit       string        `yaml:"body_limit" env-default:"50M"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"12h"`
}

const (
	BlobDriverS3    = "s3"
	BlobDriverLocal = "local"
)

type BlobStoreConfig struct {
	Driver        string        `yaml:"driver" env:"BLOB_DRIVER" env-default:"local"`
	Folder        string        `yaml:"folder" env-default:"arcfolio/projects"`
	MaxWidth      int           `yaml:"max_width" env-default:"1600"`
	MaxFileSize   int64         `yaml:"max_file_size" env-default:"10485760"`
	UploadTimeout time.Duration `yaml:"upload_timeout" env-default:"30s"`
	DeleteTimeout time.Duration `yaml:"delete_timeout" env-default:"10s"`
	Concurrency   int           `yaml:"concurrency" env-default:"4"`
	S3            S3Config      `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
}

type FileStorageConfig struct {
	BaseDir   string `yaml:"base_dir" env-default:"./uploads"`
	BaseURL   string `yaml:"base_url" env-default:"http://localhost:8080/uploads"`
	URLPrefix string `yaml:"url_prefix" env-default:"/uploads"`
}

type RedisConf struct {
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	Timeout       time.Duration `yaml:"timeout" env-default:"2s"`
}

type CacheConfig struct {
	ProjectTTL time.Duration `yaml:"project_ttl" env-default:"10m"`
	ListTTL    time.Duration `yaml:"list_ttl" env-default:"30s"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// LoadPath читает YAML и накладывает переменные окружения; .env подхватывается, если есть
func LoadPath(configPath string) (*Config, error) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// .env не обязателен, уже выставленные переменные не перетираются
	_ = godotenv.Load()

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.BlobStore.Driver {
	case BlobDriverLocal:
	case BlobDriverS3:
		if c.BlobStore.S3.Bucket == "" {
			return fmt.Errorf("blob_store.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob_store.driver %q", c.BlobStore.Driver)
	}

	if c.BlobStore.Concurrency < 1 {
		return fmt.Errorf("blob_store.concurrency must be positive")
	}

	return nil
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
