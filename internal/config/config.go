package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	NATS          NATSConfig          `yaml:"nats"`
	MinIO         MinIOConfig         `yaml:"minio"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	ImagesBucket  string        `yaml:"images_bucket"`
	VideosBucket  string        `yaml:"videos_bucket"`
	UseSSL        bool          `yaml:"use_ssl"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
	// ServiceURL is the in-cluster endpoint presigned URLs are generated
	// against; IngressURL is what clients can actually reach. URLs handed
	// to callers are rewritten from the former to the latter.
	ServiceURL  string `yaml:"service_url"`
	IngressURL  string `yaml:"ingress_url"`
	STSEndpoint string `yaml:"sts_endpoint"`
}

type CollaboratorsConfig struct {
	BlurURL           string        `yaml:"blur_url"`
	ImageEmbeddingURL string        `yaml:"image_embedding_url"`
	TextEmbeddingURL  string        `yaml:"text_embedding_url"`
	ExportURL         string        `yaml:"export_url"`
	PreviewTimeout    time.Duration `yaml:"preview_timeout"`
}

type PipelineConfig struct {
	WorkerCount int `yaml:"worker_count"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.ImagesBucket == "" {
		cfg.MinIO.ImagesBucket = "images"
	}
	if cfg.MinIO.VideosBucket == "" {
		cfg.MinIO.VideosBucket = "videos"
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = time.Hour
	}
	if cfg.MinIO.STSEndpoint == "" && cfg.MinIO.Endpoint != "" {
		scheme := "http"
		if cfg.MinIO.UseSSL {
			scheme = "https"
		}
		cfg.MinIO.STSEndpoint = scheme + "://" + cfg.MinIO.Endpoint
	}
	if cfg.Collaborators.BlurURL == "" {
		cfg.Collaborators.BlurURL = "http://ml-blurring-service/faces"
	}
	if cfg.Collaborators.ImageEmbeddingURL == "" {
		cfg.Collaborators.ImageEmbeddingURL = "http://ml-embedding-service/image"
	}
	if cfg.Collaborators.TextEmbeddingURL == "" {
		cfg.Collaborators.TextEmbeddingURL = "http://ml-embedding-service/text"
	}
	if cfg.Collaborators.ExportURL == "" {
		cfg.Collaborators.ExportURL = "http://timelapse-export:5000"
	}
	if cfg.Collaborators.PreviewTimeout == 0 {
		cfg.Collaborators.PreviewTimeout = 5 * time.Minute
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("LL_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("LL_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("LL_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("LL_MINIO_IMAGES_BUCKET"); v != "" {
		cfg.MinIO.ImagesBucket = v
	}
	if v := os.Getenv("LL_MINIO_VIDEOS_BUCKET"); v != "" {
		cfg.MinIO.VideosBucket = v
	}
	if v := os.Getenv("LL_MINIO_SERVICE_URL"); v != "" {
		cfg.MinIO.ServiceURL = v
	}
	if v := os.Getenv("LL_MINIO_INGRESS_URL"); v != "" {
		cfg.MinIO.IngressURL = v
	}
	if v := os.Getenv("LL_MINIO_STS_ENDPOINT"); v != "" {
		cfg.MinIO.STSEndpoint = v
	}
	if v := os.Getenv("LL_BLUR_URL"); v != "" {
		cfg.Collaborators.BlurURL = v
	}
	if v := os.Getenv("LL_IMAGE_EMBEDDING_URL"); v != "" {
		cfg.Collaborators.ImageEmbeddingURL = v
	}
	if v := os.Getenv("LL_TEXT_EMBEDDING_URL"); v != "" {
		cfg.Collaborators.TextEmbeddingURL = v
	}
	if v := os.Getenv("LL_EXPORT_URL"); v != "" {
		cfg.Collaborators.ExportURL = v
	}
	if v := os.Getenv("LL_PIPELINE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.WorkerCount = n
		}
	}
	if v := os.Getenv("LL_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}
