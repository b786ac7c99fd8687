package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 描述了 intentd 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Resolver ResolverConfig `yaml:"resolver"`
	Storage  StorageConfig  `yaml:"storage"`
	Solver   SolverConfig   `yaml:"solver"`
	Logging  LoggingConfig  `yaml:"logging"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与访问令牌。
type ServerConfig struct {
	Address   string `yaml:"address"`
	AuthToken string `yaml:"auth_token"`
}

// LLMConfig 用于配置大模型补全服务的调用方式。
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// OracleConfig 描述价格源及其缓存策略。
type OracleConfig struct {
	URL             string      `yaml:"url"`
	FallbackPrice   string      `yaml:"fallback_price"`
	TimeoutSeconds  int         `yaml:"timeout_seconds"`
	CacheTTLSeconds int         `yaml:"cache_ttl_seconds"`
	Redis           RedisConfig `yaml:"redis"`
}

// ResolverConfig 描述 ENS 域名解析所需的节点信息。
type ResolverConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	RegistryAddress string `yaml:"registry_address"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// RedisConfig 统一描述 Redis 连接参数。
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig 统一描述订单存储后端的连接信息。
type StorageConfig struct {
	OrderStore OrderStoreConfig `yaml:"order_store"`
}

// OrderStoreConfig 支持内存实现与 MySQL 两种驱动。
type OrderStoreConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `yaml:"conn_max_idle_time_seconds"`
}

// SolverConfig 描述已签名订单向求解器网络投递的队列。
type SolverConfig struct {
	Driver   string         `yaml:"driver"`
	Workers  int            `yaml:"workers"`
	Redis    RedisQueueCfg  `yaml:"redis"`
	RabbitMQ RabbitQueueCfg `yaml:"rabbitmq"`
}

// RedisQueueCfg 描述 Redis 队列的连接参数。
type RedisQueueCfg struct {
	RedisConfig `yaml:",inline"`
	Queue       string `yaml:"queue"`
	BlockWait   int    `yaml:"block_wait_seconds"`
}

// RabbitQueueCfg 描述 RabbitMQ 队列的连接参数。
type RabbitQueueCfg struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	Prefetch   int    `yaml:"prefetch"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// LoggingConfig 控制应用日志与审计日志。
type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs"`
	Audit   struct {
		Enabled    bool   `yaml:"enabled"`
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"audit"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir   string `yaml:"data_dir"`
	Whitelist string `yaml:"whitelist"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "openai/gpt-4o-2024-08-06"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Oracle.FallbackPrice == "" {
		c.Oracle.FallbackPrice = "3000"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 10
	}
	if c.Oracle.CacheTTLSeconds <= 0 {
		c.Oracle.CacheTTLSeconds = 30
	}

	if c.Resolver.TimeoutSeconds <= 0 {
		c.Resolver.TimeoutSeconds = 10
	}

	if c.Storage.OrderStore.Driver == "" {
		c.Storage.OrderStore.Driver = "memory"
	}

	if c.Solver.Driver == "" {
		c.Solver.Driver = "memory"
	}
	if c.Solver.Workers <= 0 {
		c.Solver.Workers = 1
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Runtime.Whitelist != "" && !filepath.IsAbs(c.Runtime.Whitelist) {
		c.Runtime.Whitelist = filepath.Join(baseDir, c.Runtime.Whitelist)
	}
}
