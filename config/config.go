package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Edamam   EdamamConfig   `mapstructure:"edamam"`
	Upload   UploadConfig   `mapstructure:"upload"`
	OSS      OSSConfig      `mapstructure:"oss"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite 或 mysql
	Path         string `mapstructure:"path"`   // sqlite 文件路径
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type QueueConfig struct {
	JobQueue   string `mapstructure:"job_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

// OpenAIConfig OpenAI 兼容接口配置，识别与营养两条链路分别设模型参数
type OpenAIConfig struct {
	BaseURL   string      `mapstructure:"base_url"`
	APIKey    string      `mapstructure:"api_key"`
	Timeout   int         `mapstructure:"timeout"` // 秒
	Vision    ModelConfig `mapstructure:"vision"`
	Nutrients ModelConfig `mapstructure:"nutrients"`
}

type ModelConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type EdamamConfig struct {
	AppID      string `mapstructure:"app_id"`
	AppKey     string `mapstructure:"app_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // 秒
	MaxResults int    `mapstructure:"max_results"`
}

type UploadConfig struct {
	TempDir           string   `mapstructure:"temp_dir"`           // 临时图片目录
	ExpireHours       int      `mapstructure:"expire_hours"`       // 过期时间（小时）
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/app.db"
	}
	if cfg.Queue.JobQueue == "" {
		cfg.Queue.JobQueue = "food_analysis_jobs"
	}
	if cfg.Queue.MaxWorkers <= 0 {
		cfg.Queue.MaxWorkers = 4
	}
	if cfg.Upload.TempDir == "" {
		cfg.Upload.TempDir = "temp_images"
	}
	if cfg.Upload.ExpireHours <= 0 {
		cfg.Upload.ExpireHours = 24
	}
	if cfg.Upload.MaxSize <= 0 {
		cfg.Upload.MaxSize = 16 * 1024 * 1024
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Timeout <= 0 {
		cfg.OpenAI.Timeout = 60
	}
	if cfg.OpenAI.Vision.Model == "" {
		cfg.OpenAI.Vision.Model = "gpt-4o"
	}
	if cfg.OpenAI.Vision.MaxTokens <= 0 {
		cfg.OpenAI.Vision.MaxTokens = 1000
	}
	if cfg.OpenAI.Nutrients.Model == "" {
		cfg.OpenAI.Nutrients.Model = "gpt-4o"
	}
	if cfg.OpenAI.Nutrients.MaxTokens <= 0 {
		cfg.OpenAI.Nutrients.MaxTokens = 800
	}
	if cfg.Edamam.BaseURL == "" {
		cfg.Edamam.BaseURL = "https://api.edamam.com/api/food-database/v2/parser"
	}
	if cfg.Edamam.Timeout <= 0 {
		cfg.Edamam.Timeout = 30
	}
	if cfg.Edamam.MaxResults <= 0 {
		cfg.Edamam.MaxResults = 10
	}
}
