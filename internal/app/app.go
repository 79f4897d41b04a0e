package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"BookMentions/internal/config"
	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/infrastructure/aws"
	"BookMentions/internal/infrastructure/objectstore"
	"BookMentions/internal/infrastructure/rabbit"
	"BookMentions/internal/infrastructure/storage"
	"BookMentions/internal/infrastructure/telegram"
	"BookMentions/internal/logging"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
	"BookMentions/internal/usecase"
)

const rabbitDialAttempts = 5

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	store    *dataset.Store
	layout   dataset.Layout
	pool     *pgxpool.Pool
	ledger   ports.RunLedger
	recorder *usecase.RunRecorder

	mu     sync.Mutex
	cloud  *aws.Clients
	broker *rabbit.Broker
	queues *queueSet
}

// queueSet holds both queues and the topics that feed them.
type queueSet struct {
	booksetQueue ports.Queue
	bookQueue    ports.Queue
	booksetTopic ports.Topic
	bookTopic    ports.Topic
}

// New connects the object store and run ledger, loads the bucket secrets and
// validates the final config. Brokers and cloud clients are opened lazily by
// the commands that need them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	m := metrics.New()

	objects, err := objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	if err := loadSecrets(ctx, objects, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		cfg:     cfg,
		log:     baseLogger,
		metrics: m,
		store:   dataset.NewStore(objects),
		layout:  dataset.NewLayout(cfg.Storage.Root, cfg.Storage.Version),
	}

	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect ledger: %w", err)
		}
		repo := storage.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool, a.ledger = pool, repo
	} else {
		baseLogger.Info("no database configured, runs are not recorded")
	}
	a.recorder = usecase.NewRunRecorder(a.ledger, m, logging.Component(baseLogger, "runs"))

	return a, nil
}

// loadSecrets fills missing credentials from the secrets object kept in the
// bucket. A missing object is not an error.
func loadSecrets(ctx context.Context, objects ports.ObjectStore, cfg *config.Config) error {
	if cfg.Storage.SecretsKey == "" {
		return nil
	}
	body, err := objects.Get(ctx, cfg.Storage.SecretsKey)
	if errors.Is(err, domain.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}
	return cfg.ApplySecrets(raw)
}

// Close releases the broker connection and the ledger pool.
func (a *Application) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.broker != nil {
		err = a.broker.Close()
		a.broker = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return err
}

func (a *Application) awsClients(ctx context.Context) (*aws.Clients, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.awsClientsLocked(ctx)
}

func (a *Application) awsClientsLocked(ctx context.Context) (*aws.Clients, error) {
	if a.cloud != nil {
		return a.cloud, nil
	}
	clients, err := aws.NewClients(ctx, a.cfg.Broker.Region, a.cfg.Broker.Endpoint)
	if err != nil {
		return nil, err
	}
	a.cloud = clients
	return clients, nil
}

// messaging opens the configured broker once.
func (a *Application) messaging(ctx context.Context) (*queueSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.queues != nil {
		return a.queues, nil
	}

	var (
		q   *queueSet
		err error
	)
	switch a.cfg.Broker.Kind {
	case "amqp":
		q, err = a.openRabbit()
	default:
		q, err = a.openSQS(ctx)
	}
	if err != nil {
		return nil, err
	}
	a.queues = q
	return q, nil
}

func (a *Application) openSQS(ctx context.Context) (*queueSet, error) {
	clients, err := a.awsClientsLocked(ctx)
	if err != nil {
		return nil, err
	}
	b := a.cfg.Broker

	booksetQueue, err := aws.NewSQSQueue(ctx, clients.SQS, b.BooksetQueue, b.WaitSeconds)
	if err != nil {
		return nil, err
	}
	bookQueue, err := aws.NewSQSQueue(ctx, clients.SQS, b.BookQueue, b.WaitSeconds)
	if err != nil {
		return nil, err
	}
	booksetTopic, err := aws.NewSNSTopic(ctx, clients.SNS, b.BooksetTopic)
	if err != nil {
		return nil, err
	}
	bookTopic, err := aws.NewSNSTopic(ctx, clients.SNS, b.BookTopic)
	if err != nil {
		return nil, err
	}
	return &queueSet{booksetQueue, bookQueue, booksetTopic, bookTopic}, nil
}

func (a *Application) openRabbit() (*queueSet, error) {
	broker, err := rabbit.Dial(a.cfg.Broker.AMQPURL, rabbitDialAttempts)
	if err != nil {
		return nil, err
	}
	b := a.cfg.Broker

	q, err := func() (*queueSet, error) {
		booksetQueue, err := broker.Queue(b.BooksetQueue)
		if err != nil {
			return nil, err
		}
		bookQueue, err := broker.Queue(b.BookQueue)
		if err != nil {
			return nil, err
		}
		booksetTopic, err := broker.Topic(b.BooksetTopic, b.BooksetQueue)
		if err != nil {
			return nil, err
		}
		bookTopic, err := broker.Topic(b.BookTopic, b.BookQueue)
		if err != nil {
			return nil, err
		}
		return &queueSet{booksetQueue, bookQueue, booksetTopic, bookTopic}, nil
	}()
	if err != nil {
		_ = broker.Close()
		return nil, err
	}
	a.broker = broker
	return q, nil
}

// notifier fans alerts out to every configured channel.
func (a *Application) notifier(ctx context.Context) (ports.Notifier, error) {
	var out alertFanout
	if a.cfg.Alerts.Email != "" {
		clients, err := a.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, aws.NewSESNotifier(clients.SES, a.cfg.Alerts.Email))
	}
	if tg := a.cfg.Alerts.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		out = append(out, telegram.NewNotifier(tg.BotToken, tg.ChatID))
	}
	if len(out) == 0 {
		a.log.Warn("no alert channel configured")
		return nil, nil
	}
	return out, nil
}
