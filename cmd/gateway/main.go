package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/adapters/gotd"
	"telegram-botapi-gateway/internal/app"
	"telegram-botapi-gateway/internal/infra/config"
	"telegram-botapi-gateway/internal/infra/fsched"
	"telegram-botapi-gateway/internal/infra/logger"
	"telegram-botapi-gateway/internal/infra/throttle"
	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
	"telegram-botapi-gateway/internal/web"
	"telegram-botapi-gateway/internal/webhook"
	"telegram-botapi-gateway/internal/webhookdb"
)

func main() {
	// envPath определяет расположение .env с ключами Telegram API и настройками шлюза.
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	// config.Load загружает конфигурацию из .env и переменных окружения.
	if err := config.Load(*envPath); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	env := config.Env()

	logger.Init(env.LogLevel)
	if env.LogFile != "" {
		logger.EnableFile(logger.FileOptions{
			Path:       env.LogFile,
			Level:      env.LogFileLevel,
			MaxSizeMB:  env.LogFileMaxSize,
			MaxBackups: env.LogFileMaxBackups,
			MaxAgeDays: env.LogFileMaxAge,
			Compress:   env.LogFileCompress,
		})
	}
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	if err := os.MkdirAll(env.DataDir, 0o750); err != nil {
		logger.Fatal("failed to create data dir", zap.Error(err))
	}

	// Контекст с обработкой системных сигналов (Ctrl+C/SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := openStore(env.TQueueFile, tqueue.Open)
	if err != nil {
		logger.Fatal("failed to open update queue", zap.Error(err))
	}
	defer func() { _ = queue.Close() }()

	whdb, err := openStore(env.WebhookDBFile, webhookdb.Open)
	if err != nil {
		logger.Fatal("failed to open webhook db", zap.Error(err))
	}
	defer func() { _ = whdb.Close() }()

	fs := fsched.New()
	fs.Start(ctx)
	defer fs.Stop()

	log := logger.Logger()

	// Мост нативного клиента поднимается на каждого бота отдельно.
	busFactory := func(token, dir string) tdapi.Bus {
		return gotd.New(gotd.Options{
			Token:   token,
			Dir:     dir,
			APIID:   env.APIID,
			APIHash: env.APIHash,
			TestDC:  env.TestDC,
			Log:     log.Named("bus"),
		})
	}

	manager := app.NewManager(app.ManagerOptions{
		Env:            env,
		Queue:          queue,
		WebhookDB:      whdb,
		FS:             fs,
		Pacer:          throttle.NewUploadPacer(time.Now),
		Bus:            busFactory,
		WebhookFactory: webhook.NewFactory(queue, log.Named("webhook")),
		Log:            log,
	})

	managerDone := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(managerDone)
	}()

	srv := web.New(env, manager, log.Named("http"))
	if err := srv.Run(ctx); err != nil {
		logger.Error("http server failed", zap.Error(err))
		stop()
	}

	// HTTP уже не принимает запросы; дожидаемся закрытия всех клиентов.
	stop()
	<-managerDone
	logger.Info("graceful shutdown complete")
}

// openStore создаёт каталог файла хранилища и открывает его.
func openStore[T any](path string, open func(string) (T, error)) (T, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		var zero T
		return zero, err
	}
	return open(path)
}
