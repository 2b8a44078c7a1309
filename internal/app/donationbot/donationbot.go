// Package donationbot собирает зависимости бота и управляет его жизненным циклом:
// HTTP-сервер вебхуков, потребитель входящих сообщений шлюза и возобновление рассылки.
package donationbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/donation-bot/internal/cache"
	"github.com/magabrotheeeer/donation-bot/internal/config"
	"github.com/magabrotheeeer/donation-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/donation-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/donation-bot/internal/messenger"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
	"github.com/magabrotheeeer/donation-bot/internal/migrations"
	"github.com/magabrotheeeer/donation-bot/internal/services/broadcast"
	"github.com/magabrotheeeer/donation-bot/internal/services/catalog"
	"github.com/magabrotheeeer/donation-bot/internal/services/commands"
	"github.com/magabrotheeeer/donation-bot/internal/services/donation"
	"github.com/magabrotheeeer/donation-bot/internal/services/lifecycle"
	"github.com/magabrotheeeer/donation-bot/internal/services/mailer"
	"github.com/magabrotheeeer/donation-bot/internal/storage"
	"github.com/magabrotheeeer/donation-bot/internal/trakteer"
	"github.com/magabrotheeeer/donation-bot/internal/wordpress"
)

const shutdownTimeout = 15 * time.Second

// App приложение бота.
type App struct {
	cfg        *config.Config
	server     *http.Server
	logger     *slog.Logger
	db         *storage.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
	dispatcher *commands.Dispatcher
	runner     *broadcast.Runner
	wg         sync.WaitGroup
}

// New подключается к хранилищам и брокеру и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.donationbot.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetGatewayQueues(cfg.RabbitMQ))
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	chat := messenger.New(ch, cfg.Exchange, cfg.OutboundRoutingKey, logger)

	lifecycleService := lifecycle.New(db, logger)

	catalogOpts := []catalog.Option{catalog.WithCache(cacheRedis, cfg.CatalogTTL)}
	if cfg.WordPressEnabled() {
		catalogOpts = append(catalogOpts, catalog.WithKeyRotator(wordpress.NewClient(cfg.WordPress, logger)))
	} else {
		logger.Info("wordpress is not configured, package key changes will not update posts")
	}
	catalogService := catalog.New(db, logger, catalogOpts...)

	donationOpts := []donation.Option{donation.WithMetrics(m)}
	if cfg.Trakteer.APIKey != "" {
		donationOpts = append(donationOpts, donation.WithTransactionSource(trakteer.NewClient(cfg.Trakteer)))
	}
	if cfg.SMTPEnabled() {
		donationOpts = append(donationOpts, donation.WithMailer(mailer.New(logger, smtp.NewTransport(cfg.SMTP, logger))))
	}
	donationService := donation.New(catalogService, lifecycleService, chat, db, logger, donationOpts...)

	var jobStore broadcast.Store
	switch cfg.Broadcast.Store {
	case "redis":
		jobStore = broadcast.NewRedisStore(cacheRedis.Db, cfg.Broadcast.RedisKey)
	default:
		jobStore = broadcast.NewFileStore(cfg.JobPath)
	}
	runner := broadcast.NewRunner(jobStore, chat, db, cfg.Broadcast.Delay, logger, broadcast.WithMetrics(m))

	dispatcher := commands.New(commands.Deps{
		Directory:   db,
		Catalog:     catalogService,
		Lifecycle:   lifecycleService,
		Broadcaster: runner,
		Messenger:   chat,
		Settings:    commands.NewSettings(cfg.WhitelistedNumbers, cfg.BannedNumbers),
	}, logger,
		commands.WithPrefix(cfg.CommandPrefix),
		commands.WithDelay(cfg.CommandDelay),
		commands.WithMetrics(m),
	)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.Webhook, donationService, map[string]health.Pinger{
		"postgres": db,
		"redis":    cacheRedis,
	}, m, reg)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		server:     srv,
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		conn:       conn,
		ch:         ch,
		dispatcher: dispatcher,
		runner:     runner,
	}, nil
}

// Run запускает HTTP-сервер, потребителя входящих сообщений и возобновление
// незавершённой рассылки. Блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if err := rabbitmq.ConsumerMessage(ctx, a.ch, a.cfg.InboundQueue, a.logger, a.dispatcher.Handle); err != nil {
		a.logger.Error("failed to start inbound consumer", sl.Err(err))
		a.shutdown()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.runner.ResumeOnStartup(ctx); err != nil {
			a.logger.Error("failed to resume broadcast", sl.Err(err))
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}

	// Рассылки останавливаются по отмене ctx и сохраняют прогресс до закрытия канала.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		a.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-timeoutCtx.Done():
		a.logger.Warn("background commands did not finish in time")
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
