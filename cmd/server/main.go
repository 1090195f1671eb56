// Package main 是应用程序的入口点。
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/internal/handler"
	"paper-search-go/internal/middleware"
	"paper-search-go/internal/model"
	"paper-search-go/internal/pipeline"
	"paper-search-go/internal/repository"
	"paper-search-go/internal/service"
	"paper-search-go/pkg/arxiv"
	"paper-search-go/pkg/database"
	"paper-search-go/pkg/embedding"
	"paper-search-go/pkg/es"
	"paper-search-go/pkg/kafka"
	"paper-search-go/pkg/log"
	"paper-search-go/pkg/rerank"
	"paper-search-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和 Elasticsearch
	db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 sql.DB 失败: %v", err)
	}
	rdb, err := database.InitRedis(context.Background(), cfg.Database.Redis)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	vectorIndex := es.NewVectorIndex(esClient, cfg.Elasticsearch.IndexName, cfg.Embedding)

	// 4. 初始化外部客户端
	var sharedCache embedding.SharedCache
	if cfg.Embedding.RedisCacheTTL > 0 {
		sharedCache = embedding.NewRedisCache(rdb, cfg.Embedding.RedisCacheTTL, cfg.Embedding.Model, cfg.Embedding.Encoding)
	}
	embedder := embedding.NewCachedClient(
		embedding.NewClient(cfg.Embedding),
		embedding.NewLRUCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL),
		sharedCache,
	)
	arxivClient := arxiv.NewClient(cfg.Arxiv)
	rerankClient := rerank.NewClient(cfg.Rerank)
	producer := kafka.NewProducer(cfg.Kafka)

	// 5. 初始化 Repository 和 Service (依赖注入)
	ingestRepo := repository.NewIngestRepository(db)
	searchService := service.NewSearchService(arxivClient, embedder, vectorIndex, rerankClient, cfg.Search, cfg.Rerank)
	indexService := service.NewIndexService(ingestRepo, producer)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)

	// 6. 初始化入库管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(arxivClient, embedder, vectorIndex, ingestRepo, cfg.Embedding.Model)
	consumer := kafka.NewConsumer(cfg.Kafka, processor, kafka.NewRedisAttemptCounter(rdb), producer)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil {
			log.Errorf("Kafka 消费者异常退出: %v", err)
		}
	}()

	// 6.1 导入种子文件中的论文 ID，已入库则跳过
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	go initSeedIDs(seedCtx, cfg.Ingest.SeedFile, ingestRepo, indexService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.CORSAllowedOrigins))

	// 8. 注册路由
	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"elasticsearch": vectorIndex.Ping,
		"redis":         func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"mysql":         sqlDB.PingContext,
	})
	handler.RegisterRoutes(r,
		handler.NewSearchHandler(searchService),
		handler.NewIndexHandler(indexService),
		health,
		jwtManager,
	)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 先停止消费者，再关闭生产者，避免重新投递时写入已关闭的 writer
	cancelSeed()
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	if err := producer.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Errorf("关闭 Redis 连接失败: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorf("关闭 MySQL 连接失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// initSeedIDs 读取种子文件（每行一个 arXiv ID 或链接，# 开头为注释），将尚未入库的论文投递到入库队列（幂等）。
func initSeedIDs(ctx context.Context, path string, ingestRepo repository.IngestRepository, indexSvc service.IndexService) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		log.Infof("initSeedIDs: 种子文件 '%s' 不存在或不可用，跳过初始化导入", path)
		return
	}
	defer f.Close()

	var pending []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, ok := arxiv.ExtractID(line)
		if !ok {
			log.Warnf("initSeedIDs: 无法识别的 ID，跳过: %s", line)
			continue
		}

		// 幂等检查：已完成则跳过
		rec, ferr := ingestRepo.FindByArxivID(ctx, id)
		if ferr == nil && rec.Status == model.IngestStatusIndexed {
			continue
		}
		if ferr != nil && !apperr.IsNotFound(ferr) {
			log.Warnf("initSeedIDs: 查询入库状态失败: %s, err=%v", id, ferr)
			continue
		}
		pending = append(pending, id)
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("initSeedIDs: 读取种子文件出错: %v", err)
	}

	for start := 0; start < len(pending); start += service.MaxEnqueueBatch {
		end := start + service.MaxEnqueueBatch
		if end > len(pending) {
			end = len(pending)
		}
		if _, err := indexSvc.Enqueue(ctx, pending[start:end], "seed"); err != nil {
			log.Warnf("initSeedIDs: 投递失败: %v", err)
			return
		}
	}
	log.Infof("initSeedIDs: 初始化导入完成，共投递 %d 篇论文", len(pending))
}
