// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// MaxSearchLimit 是单次检索允许返回的最大条数。
const MaxSearchLimit = 1000

// EnvPrefix 是通用环境变量覆盖的前缀，例如 PAPERSEARCH_SERVER_PORT。
const EnvPrefix = "PAPERSEARCH"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Rerank        RerankConfig        `mapstructure:"rerank"`
	Arxiv         ArxivConfig         `mapstructure:"arxiv"`
	Search        SearchConfig        `mapstructure:"search"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// CORSAllowedOrigins 为 ["*"] 时允许任意来源跨域访问。
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储管理接口 token 的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储向量索引相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	APIKey    string `mapstructure:"api_key"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	// Encoding 取值 float 或 ubinary。
	Encoding           string        `mapstructure:"encoding"`
	TruncationStrategy string        `mapstructure:"truncation_strategy"`
	CacheSize          int           `mapstructure:"cache_size"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	// RedisCacheTTL 为 0 时不启用 Redis 二级缓存。
	RedisCacheTTL time.Duration `mapstructure:"redis_cache_ttl"`
}

// RerankConfig 存储重排序模型相关的配置。
type RerankConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	Model            string `mapstructure:"model"`
	InputSearchLimit int    `mapstructure:"input_search_limit"`
}

// ArxivConfig 存储 arXiv 元数据接口的配置。
type ArxivConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
}

// SearchConfig 存储检索行为相关的配置。
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	// StrictFilter 为 false 时，未知的时间过滤值按 "All" 处理而不是报错。
	StrictFilter bool `mapstructure:"strict_filter"`
}

// IngestConfig 存储入库相关的配置。
type IngestConfig struct {
	// SeedFile 每行一个 arXiv ID，服务启动时投递其中尚未入库的论文；为空时跳过。
	SeedFile string `mapstructure:"seed_file"`
}

// envBindings 保留原有部署使用的环境变量名。
var envBindings = map[string][]string{
	"elasticsearch.addresses":   {"ENDPOINT"},
	"elasticsearch.api_key":     {"TOKEN"},
	"elasticsearch.index_name":  {"COLLECTION_NAME"},
	"search.default_limit":      {"SEARCH_LIMIT"},
	"rerank.input_search_limit": {"RERANK_INPUT_SEARCH_LIMIT"},
	"embedding.api_key":         {"MXBAI_API_KEY"},
	"rerank.api_key":            {"MXBAI_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "paper-index")
	v.SetDefault("kafka.group_id", "paper-search-go-consumer")

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.api_key", "")
	v.SetDefault("elasticsearch.index_name", "arxiv_abstracts")

	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.mixedbread.com/v1")
	v.SetDefault("embedding.model", "mixedbread-ai/mxbai-embed-large-v1")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.encoding", "ubinary")
	v.SetDefault("embedding.truncation_strategy", "end")
	v.SetDefault("embedding.cache_size", 4096)
	v.SetDefault("embedding.cache_ttl", time.Duration(0))
	v.SetDefault("embedding.redis_cache_ttl", time.Duration(0))

	v.SetDefault("rerank.api_key", "")
	v.SetDefault("rerank.base_url", "https://api.mixedbread.com/v1")
	v.SetDefault("rerank.model", "mixedbread-ai/mxbai-rerank-large-v2")
	v.SetDefault("rerank.input_search_limit", 50)

	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("arxiv.timeout", 30*time.Second)
	v.SetDefault("arxiv.max_attempts", 3)
	v.SetDefault("arxiv.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("arxiv.rate_interval", 3*time.Second)

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.strict_filter", true)

	v.SetDefault("ingest.seed_file", "")
}

// Load 读取 .env（若存在）、YAML 配置文件（若存在）和环境变量，返回合并后的配置。
// 优先级：环境变量 > 配置文件 > 默认值。
func Load(configPath string) (Config, error) {
	// .env 只补充尚未设置的环境变量
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查取值范围。
func (c Config) Validate() error {
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > MaxSearchLimit {
		return fmt.Errorf("search.default_limit 必须在 1 到 %d 之间, got %d", MaxSearchLimit, c.Search.DefaultLimit)
	}
	if c.Rerank.InputSearchLimit <= 0 || c.Rerank.InputSearchLimit > MaxSearchLimit {
		return fmt.Errorf("rerank.input_search_limit 必须在 1 到 %d 之间, got %d", MaxSearchLimit, c.Rerank.InputSearchLimit)
	}
	if c.Embedding.Encoding != "float" && c.Embedding.Encoding != "ubinary" {
		return fmt.Errorf("embedding.encoding 只支持 float 或 ubinary, got %q", c.Embedding.Encoding)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions 必须为正整数, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Encoding == "ubinary" && c.Embedding.Dimensions%8 != 0 {
		return fmt.Errorf("ubinary 编码要求 embedding.dimensions 为 8 的倍数, got %d", c.Embedding.Dimensions)
	}
	if c.Arxiv.MaxAttempts <= 0 {
		return fmt.Errorf("arxiv.max_attempts 必须为正整数, got %d", c.Arxiv.MaxAttempts)
	}
	return nil
}

// Init 加载配置到 Conf 变量中，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
