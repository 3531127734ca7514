package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 DOCCHUNKER_DOCUMENT_CHUNK_SIZE
const EnvPrefix = "DOCCHUNKER"

// Config 应用程序配置结构体
type Config struct {
	Document DocumentConfig `mapstructure:"document"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// DocumentConfig 文档加载与分段配置
type DocumentConfig struct {
	ChunkSize       int    `mapstructure:"chunk_size" validate:"gt=0"`                       // 分块大小(字符)
	ChunkOverlap    int    `mapstructure:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"` // 分块重叠大小
	Separator       string `mapstructure:"separator"`                                        // 分隔符，为空时按字符切分
	KeepSeparator   bool   `mapstructure:"keep_separator"`                                   // 保留分隔符
	StripWhitespace bool   `mapstructure:"strip_whitespace"`                                 // 去除块首尾空白
	PDFEngine       string `mapstructure:"pdf_engine" validate:"oneof=ledongthuc pdfcpu"`    // PDF解析引擎
}

// StorageConfig 文档来源存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储根目录
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CacheConfig 分段结果缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address" validate:"required_if=Type redis Enable true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	TTL      int    `mapstructure:"ttl" validate:"gte=0"` // 缓存TTL（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

var validate = validator.New()

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithViper(viper.New(), configPath)
}

// LoadWithViper 使用调用方提供的viper实例加载配置
// 调用方可以预先绑定命令行参数，优先级为: 命令行 > 环境变量 > 配置文件 > 默认值
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	// .env不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 默认在当前目录寻找config.yaml，找不到时使用默认值
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开形如${VAR}的密钥配置
func processEnvironmentVariables(cfg *Config) {
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 文档处理默认配置
	v.SetDefault("document.chunk_size", 200)
	v.SetDefault("document.chunk_overlap", 0)
	v.SetDefault("document.separator", "")
	v.SetDefault("document.keep_separator", false)
	v.SetDefault("document.strip_whitespace", false)
	v.SetDefault("document.pdf_engine", "ledongthuc")

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", ".")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 缓存默认配置
	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 3600) // 1小时

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}
