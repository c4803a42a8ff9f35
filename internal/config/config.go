package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/abduss/assetgate/internal/naming"
)

const (
	BackendGitHub = "github"
	BackendMinIO  = "minio"
	BackendS3     = "s3"

	configFileEnvKey = "ASSETGATE_CONFIG"
)

// Config aggregates runtime configuration for the asset gateway.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	GitHub    GitHubConfig    `toml:"github"`
	MinIO     MinIOConfig     `toml:"minio"`
	S3        S3Config        `toml:"s3"`
	Store     StoreConfig     `toml:"store"`
	Upload    UploadConfig    `toml:"upload"`
	Committer CommitterConfig `toml:"committer"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GitHubConfig identifies the content repository and the credential used to write to it.
// The token is only ever read from the environment.
type GitHubConfig struct {
	Token  string `toml:"-"`
	Owner  string `toml:"owner"`
	Repo   string `toml:"repo"`
	Branch string `toml:"branch"`
	APIURL string `toml:"api_url"`
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"-"`
	SecretAccessKey string `toml:"-"`
	Bucket          string `toml:"bucket"`
	UseSSL          bool   `toml:"use_ssl"`
	Region          string `toml:"region"`
}

// S3Config carries settings for an S3 (or S3-compatible) bucket.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"-"`
	SecretAccessKey string `toml:"-"`
}

// StoreConfig selects the backend and describes how stored paths become public URLs.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	PublicBaseURL string `toml:"public_base_url"`
	ImagePrefix   string `toml:"image_prefix"`
	BackupPrefix  string `toml:"backup_prefix"`
	Naming        string `toml:"naming"`
}

// UploadConfig bounds and tunes the ingestion pipeline.
type UploadConfig struct {
	MaxFileBytes    int64         `toml:"max_file_bytes"`
	MaxRequestBytes int64         `toml:"max_request_bytes"`
	MaxThumbnails   int           `toml:"max_thumbnails"`
	Quality         int           `toml:"quality"`
	MaxDimension    int           `toml:"max_dimension"`
	Timeout         time.Duration `toml:"timeout"`
	Concurrency     int           `toml:"concurrency"`
	MaxRetries      int           `toml:"max_retries"`
	RetryBackoff    time.Duration `toml:"retry_backoff"`
}

// CommitterConfig is the machine identity recorded on every commit.
type CommitterConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `toml:"prometheus_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		GitHub: GitHubConfig{
			Owner: "dms-eshop",
			Repo:  "cloud",
		},
		MinIO: MinIOConfig{
			Endpoint: "localhost:9000",
			Bucket:   "assets",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Store: StoreConfig{
			Backend:       BackendGitHub,
			PublicBaseURL: "https://storage.dms-eshop.com",
			ImagePrefix:   "public/image/generated",
			BackupPrefix:  "public/product",
			Naming:        "timestamp",
		},
		Upload: UploadConfig{
			MaxFileBytes:    5 * 1024 * 1024,
			MaxRequestBytes: 64 * 1024 * 1024,
			MaxThumbnails:   10,
			Quality:         80,
			Timeout:         30 * time.Second,
			Concurrency:     4,
			RetryBackoff:    250 * time.Millisecond,
		},
		Committer: CommitterConfig{
			Name:  "Asset Gate",
			Email: "assetgate-bot@dms-eshop.com",
		},
		Metrics: MetricsConfig{
			PrometheusPath: "/metrics",
		},
	}
}

// Load reads the optional TOML file named by ASSETGATE_CONFIG and overlays environment variables.
func Load() (Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv(configFileEnvKey)))
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports malformed settings. A missing store credential is not an error here:
// the server still starts and rejects uploads with a configuration error.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendGitHub:
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			errs = append(errs, errors.New("github owner and repo are required"))
		}
	case BackendMinIO:
		if c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("minio bucket is required"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	if c.Store.Naming == naming.StrategyKeyed {
		errs = append(errs, errors.New("keyed naming needs a per-request key and cannot be the default strategy"))
	} else if _, err := naming.New(c.Store.Naming); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Store.PublicBaseURL) == "" {
		errs = append(errs, errors.New("public base url is required"))
	}
	if c.Upload.Quality < 1 || c.Upload.Quality > 100 {
		errs = append(errs, fmt.Errorf("upload quality must be within 1..100, got %d", c.Upload.Quality))
	}
	if c.Upload.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("upload max file bytes must be positive"))
	}
	if c.Upload.MaxRequestBytes < c.Upload.MaxFileBytes {
		errs = append(errs, errors.New("upload max request bytes must be at least max file bytes"))
	}
	if c.Upload.MaxThumbnails < 0 {
		errs = append(errs, errors.New("upload max thumbnails must not be negative"))
	}
	if c.Upload.Concurrency <= 0 {
		errs = append(errs, errors.New("upload concurrency must be positive"))
	}
	if c.Upload.MaxRetries < 0 {
		errs = append(errs, errors.New("upload max retries must not be negative"))
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, errors.New("upload timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getString("ASSETGATE_API_HOST", cfg.Server.Host)
	cfg.Server.Port = getInt("ASSETGATE_API_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDuration("ASSETGATE_API_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDuration("ASSETGATE_API_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getDuration("ASSETGATE_API_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.GitHub.Token = strings.TrimSpace(getString("GITHUB_TOKEN", cfg.GitHub.Token))
	cfg.GitHub.Owner = getString("GITHUB_OWNER", cfg.GitHub.Owner)
	cfg.GitHub.Repo = getString("GITHUB_REPO", cfg.GitHub.Repo)
	cfg.GitHub.Branch = getString("GITHUB_BRANCH", cfg.GitHub.Branch)
	cfg.GitHub.APIURL = getString("GITHUB_API_URL", cfg.GitHub.APIURL)

	cfg.MinIO.Endpoint = getString("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKeyID = getString("MINIO_ROOT_USER", cfg.MinIO.AccessKeyID)
	cfg.MinIO.SecretAccessKey = getString("MINIO_ROOT_PASSWORD", cfg.MinIO.SecretAccessKey)
	cfg.MinIO.Bucket = getString("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.UseSSL = getBool("MINIO_USE_SSL", cfg.MinIO.UseSSL)
	cfg.MinIO.Region = getString("MINIO_REGION", cfg.MinIO.Region)

	cfg.S3.Bucket = getString("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Region = getString("S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = getString("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKeyID = getString("S3_ACCESS_KEY_ID", cfg.S3.AccessKeyID)
	cfg.S3.SecretAccessKey = getString("S3_SECRET_ACCESS_KEY", cfg.S3.SecretAccessKey)

	cfg.Store.Backend = strings.ToLower(getString("ASSET_STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.PublicBaseURL = strings.TrimRight(getString("ASSET_PUBLIC_BASE_URL", cfg.Store.PublicBaseURL), "/")
	cfg.Store.ImagePrefix = strings.Trim(getString("ASSET_IMAGE_PREFIX", cfg.Store.ImagePrefix), "/")
	cfg.Store.BackupPrefix = strings.Trim(getString("ASSET_BACKUP_PREFIX", cfg.Store.BackupPrefix), "/")
	cfg.Store.Naming = strings.ToLower(getString("ASSET_NAMING", cfg.Store.Naming))

	cfg.Upload.MaxFileBytes = getInt64("UPLOAD_MAX_FILE_BYTES", cfg.Upload.MaxFileBytes)
	cfg.Upload.MaxRequestBytes = getInt64("UPLOAD_MAX_REQUEST_BYTES", cfg.Upload.MaxRequestBytes)
	cfg.Upload.MaxThumbnails = getInt("UPLOAD_MAX_THUMBNAILS", cfg.Upload.MaxThumbnails)
	cfg.Upload.Quality = getInt("UPLOAD_QUALITY", cfg.Upload.Quality)
	cfg.Upload.MaxDimension = getInt("UPLOAD_MAX_DIMENSION", cfg.Upload.MaxDimension)
	cfg.Upload.Timeout = getDuration("UPLOAD_TIMEOUT", cfg.Upload.Timeout)
	cfg.Upload.Concurrency = getInt("UPLOAD_CONCURRENCY", cfg.Upload.Concurrency)
	cfg.Upload.MaxRetries = getInt("UPLOAD_MAX_RETRIES", cfg.Upload.MaxRetries)
	cfg.Upload.RetryBackoff = getDuration("UPLOAD_RETRY_BACKOFF", cfg.Upload.RetryBackoff)

	cfg.Committer.Name = getString("COMMITTER_NAME", cfg.Committer.Name)
	cfg.Committer.Email = getString("COMMITTER_EMAIL", cfg.Committer.Email)

	cfg.Metrics.PrometheusPath = getString("ASSETGATE_METRICS_PATH", cfg.Metrics.PrometheusPath)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
