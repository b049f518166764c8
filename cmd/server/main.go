package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pointledger/internal/config"
	"pointledger/internal/handler"
	"pointledger/internal/infrastructure/cache"
	"pointledger/internal/infrastructure/database"
	"pointledger/internal/infrastructure/lock"
	"pointledger/internal/infrastructure/logger"
	"pointledger/internal/infrastructure/mq"
	"pointledger/internal/job"
	"pointledger/internal/repository"
	"pointledger/internal/service"
	"pointledger/pkg/idgen"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径，为空时只使用默认值和环境变量")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	os.Exit(finish(zl, run(cfg, zl, *workerID)))
}

// finish 记录退出原因并刷新日志缓冲，返回进程退出码
func finish(zl *zap.Logger, err error) int {
	code := 0
	if err != nil {
		zl.Error("服务异常退出", zap.Error(err))
		code = 1
	}
	_ = zl.Sync()
	return code
}

func run(cfg *config.Config, zl *zap.Logger, workerID int64) error {
	// 初始化 ID 生成器
	if err := idgen.Init(workerID); err != nil {
		return err
	}

	balances, histories, err := newStores(cfg)
	if err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(cfg, zl)
	if err != nil {
		return err
	}
	defer closeLocker()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	opts := []service.Option{service.WithLogger(zl)}

	// 初始化 Kafka，启动事件发送任务
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				zl.Warn("关闭 Kafka 生产者失败", zap.Error(err))
			}
		}()
		zl.Info("Kafka 生产者创建成功", zap.Strings("brokers", cfg.Kafka.Brokers))

		sender := job.NewEventSender(producer, cfg.Kafka.Topic.PointEvent, cfg.Business.EventQueueSize, cfg.Business.MaxRetryCount, zl)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender.Start(ctx)
		}()
		opts = append(opts, service.WithEventPublisher(sender))
	}

	reconcileJob := job.NewReconcileJob(balances, histories, cfg.Business.ReconcileInterval, zl)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconcileJob.Start(ctx)
	}()

	pointService := service.NewPointService(balances, histories, locker, opts...)

	// 设置路由
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.SetupRouter(pointService, zl)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("服务启动", zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver), zap.String("lock", cfg.Lock.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("服务启动失败: %w", err)
	}

	zl.Info("正在关闭服务...")

	// 先关闭 HTTP 服务（等待最多5秒），再停止后台任务，保证最后的事件能发出去
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("服务关闭异常", zap.Error(err))
	}

	cancel()
	wg.Wait()

	zl.Info("服务已关闭")
	return nil
}

func newStores(cfg *config.Config) (repository.BalanceStore, repository.HistoryLog, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMySQL:
		db, err := database.NewMySQL(&cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewUserPointRepository(db), repository.NewPointHistoryRepository(db), nil
	default:
		latency := repository.Latency{Min: cfg.Store.LatencyMin, Max: cfg.Store.LatencyMax}
		return repository.NewUserPointTable(latency), repository.NewPointHistoryTable(latency), nil
	}
}

func newLocker(cfg *config.Config, zl *zap.Logger) (lock.Locker, func(), error) {
	switch cfg.Lock.Driver {
	case config.LockDriverRedis:
		client, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		locker := lock.NewRedisLocker(client, cfg.Lock.Expiration, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries, zl)
		return locker, func() { _ = client.Close() }, nil
	default:
		return lock.NewKeyedMutex(), func() {}, nil
	}
}
