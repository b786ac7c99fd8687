package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Intent-Solver/internal/api"
	"Intent-Solver/internal/config"
	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/knowledge"
	"Intent-Solver/internal/llm/openai"
	"Intent-Solver/internal/oracle"
	"Intent-Solver/internal/order"
	"Intent-Solver/internal/solver"
	"Intent-Solver/internal/storage/mysql"
	"Intent-Solver/internal/web3"
	"Intent-Solver/internal/web3/ens"
	"Intent-Solver/pkg/logger"
)

// main 是 intentd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("intentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("INTENTSOLVER_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "intentsolver.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	// 白名单知识库。未配置外部文件时使用内置默认表。
	kb := knowledge.Default()
	if cfg.Runtime.Whitelist != "" {
		kb, err = knowledge.Load(cfg.Runtime.Whitelist)
		if err != nil {
			return err
		}
	}

	llmClient, err := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	priceOracle, closeOracle, err := createOracle(cfg)
	if err != nil {
		return err
	}
	defer closeOracle()

	// ENS 解析是可选能力，未配置 RPC 节点时域名回退到用户地址。
	var resolver web3.NameResolver
	if cfg.Resolver.RPCURL != "" {
		ensResolver, err := ens.NewResolver(ctx, ens.Config{
			RPCURL:          cfg.Resolver.RPCURL,
			RegistryAddress: cfg.Resolver.RegistryAddress,
			Timeout:         time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		defer ensResolver.Close()
		resolver = ensResolver
	}

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	var orderRepo mysql.OrderRepository
	switch cfg.Storage.OrderStore.Driver {
	case "memory", "":
		repo, err := mysql.NewMemoryOrderRepository(dataDir)
		if err != nil {
			return err
		}
		orderRepo = repo
	case "mysql":
		repo, err := mysql.NewSQLOrderRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.OrderStore.DSN,
			MaxOpenConns:    cfg.Storage.OrderStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.OrderStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.OrderStore.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.OrderStore.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		orderRepo = repo
	default:
		return mysql.ErrUnsupportedDriver
	}
	if closer, ok := orderRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	orderQueue, err := createQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := orderQueue.Close(); err != nil {
			logger.L().Warn("关闭订单队列失败", slog.Any("error", err))
		}
	}()

	intentService := intent.NewService(
		intent.NewParser(kb, llmClient),
		intent.NewNormalizer(kb, priceOracle, resolver),
	)
	encoder := order.NewEncoder(kb)
	orderService := solver.NewService(orderRepo, orderQueue, order.NewVerifier())

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go func() {
		if err := orderService.Run(workerCtx, cfg.Solver.Workers); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("订单消费循环异常退出", slog.Any("error", err))
		}
	}()

	server := api.NewServer(cfg.Server.Address, cfg.Server.AuthToken, intentService, encoder, orderService)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createOracle 按配置组装价格源，必要时套上 Redis 读穿缓存。
func createOracle(cfg *config.Config) (oracle.Oracle, func(), error) {
	fallback := oracle.DefaultFallbackPrice()
	if cfg.Oracle.FallbackPrice != "" {
		parsed, ok := new(big.Rat).SetString(cfg.Oracle.FallbackPrice)
		if !ok {
			return nil, nil, fmt.Errorf("无法解析兜底价格: %s", cfg.Oracle.FallbackPrice)
		}
		fallback = parsed
	}

	var inner oracle.Oracle
	if cfg.Oracle.URL != "" {
		inner = oracle.NewCoinGecko(oracle.CoinGeckoConfig{
			URL:      cfg.Oracle.URL,
			Fallback: fallback,
			Timeout:  time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		})
	} else {
		inner = oracle.NewStatic(fallback)
	}

	if cfg.Oracle.Redis.Address == "" {
		return inner, func() {}, nil
	}
	cache, err := oracle.NewCache(inner, oracle.CacheConfig{
		Address:  cfg.Oracle.Redis.Address,
		Password: cfg.Oracle.Redis.Password,
		DB:       cfg.Oracle.Redis.DB,
		TTL:      time.Duration(cfg.Oracle.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	return cache, func() { _ = cache.Close() }, nil
}

// createQueue 按配置选择订单投递队列的驱动。
func createQueue(cfg *config.Config) (solver.Queue, error) {
	switch cfg.Solver.Driver {
	case "", "memory":
		return solver.NewMemoryQueue(1024), nil
	case "redis":
		return solver.NewRedisQueue(solver.RedisQueueConfig{
			Address:   cfg.Solver.Redis.Address,
			Password:  cfg.Solver.Redis.Password,
			DB:        cfg.Solver.Redis.DB,
			Queue:     cfg.Solver.Redis.Queue,
			BlockWait: time.Duration(cfg.Solver.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return solver.NewRabbitMQQueue(solver.RabbitMQConfig{
			URL:        cfg.Solver.RabbitMQ.URL,
			Queue:      cfg.Solver.RabbitMQ.Queue,
			Prefetch:   cfg.Solver.RabbitMQ.Prefetch,
			Durable:    cfg.Solver.RabbitMQ.Durable,
			AutoDelete: cfg.Solver.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Solver.Driver)
	}
}
