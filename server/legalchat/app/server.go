package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	commonauth "legalchat/server/common/auth"
	"legalchat/server/common/infra/cache"
	"legalchat/server/common/infra/db"
	"legalchat/server/common/infra/mq"
	"legalchat/server/common/infra/object"
	commonlog "legalchat/server/common/log"
	"legalchat/server/common/middleware"
	"legalchat/server/legalchat/api"
	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/repository"
	"legalchat/server/legalchat/repository/migrations"
	"legalchat/server/legalchat/service"
)

const startupTimeout = 15 * time.Second

type Server struct {
	HTTPServer *http.Server

	pool      *pgxpool.Pool
	redis     *redis.Client
	mqConn    *amqp.Connection
	publisher *service.AMQPPublisher
	assistant *service.GeminiAssistant
	hub       *service.Hub
}

func ConfigureLogging(cfg Config) {
	commonlog.Configure(commonlog.Options{
		FilePath:     cfg.LogFilePath,
		MaxSizeBytes: int64(cfg.LogMaxSizeMB) * 1024 * 1024,
		Format:       cfg.LogFormat,
		MinLevel:     cfg.LogLevel,
	})
}

func OpenDatabase(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:        int32(cfg.PostgresMaxConns),
		MaxConnLifetime: cfg.PostgresMaxConnLife,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func Migrate(pool *pgxpool.Pool) error {
	version, dirty, err := migrations.ApplyPool(pool)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	commonlog.Infof("event=startup action=migrate status=ok version=%d dirty=%t", version, dirty)
	return nil
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	s := &Server{}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	pool, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.pool = pool

	s.redis = cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := cache.Ping(ctx, s.redis); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	minioClient, err := object.NewClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		return nil, fmt.Errorf("initialize minio: %w", err)
	}
	if err := object.EnsureBucket(ctx, minioClient, cfg.MinioBucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinioBucket, err)
	}
	blobs := object.NewBucketStore(minioClient, cfg.MinioBucket)

	var publisher service.Publisher = service.NoopPublisher{}
	if cfg.UseMQ {
		s.mqConn, err = mq.NewConnection(cfg.LavinMQURL)
		if err != nil {
			return nil, fmt.Errorf("initialize lavinmq: %w", err)
		}
		s.publisher, err = service.NewAMQPPublisher(s.mqConn)
		if err != nil {
			return nil, fmt.Errorf("initialize amqp publisher: %w", err)
		}
		publisher = s.publisher
	}

	var assistant service.Assistant
	if cfg.GeminiAPIKey == "" {
		commonlog.Warnf("event=startup action=assistant status=disabled reason=missing_api_key")
		assistant = unconfiguredAssistant{model: cfg.GeminiModel}
	} else {
		s.assistant, err = service.NewGeminiAssistant(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("initialize gemini: %w", err)
		}
		assistant = s.assistant
	}

	s.hub = service.NewHub()
	s.hub.UseRedis(s.redis)
	if err := s.hub.StartRedisSubscriber(context.Background()); err != nil {
		return nil, fmt.Errorf("start notification subscriber: %w", err)
	}

	users := repository.NewUserRepository(pool)
	chats := repository.NewChatRepository(pool)
	files := repository.NewFileRepository(pool)
	notes := repository.NewNotificationRepository(pool)
	logs := repository.NewAdminLogRepository(pool)
	tokens := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)

	accounts := service.NewAccountService(service.AccountDeps{
		Accounts:      users,
		Chats:         chats,
		Files:         files,
		Blobs:         blobs,
		Notifications: notes,
		AdminLogs:     logs,
		OTPs:          service.NewRedisOTPStore(s.redis),
		Tokens:        tokens,
		Publisher:     publisher,
	})
	h := api.NewHandler(api.Deps{
		Accounts:      accounts,
		Chats:         service.NewChatService(chats, files, blobs, users, assistant, publisher),
		Files:         service.NewFileService(files, blobs),
		Notifications: service.NewNotificationService(notes, users, logs, publisher, s.hub),
		Auth:          tokens,
		Hub:           s.hub,
		ReadyChecks: map[string]api.ReadyCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return cache.Ping(ctx, s.redis) },
			"minio":    blobs.Ping,
		},
		AllowLegacyUserHeader: cfg.AllowLegacyUserHeader,
	})

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.LoggerWithWriter(commonlog.Writer()), middleware.Recovery())
	h.RegisterRoutes(r)

	s.HTTPServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ok = true
	return s, nil
}

func NewAdminAccounts(pool *pgxpool.Pool) *service.AccountService {
	return service.NewAccountService(service.AccountDeps{
		Accounts:  repository.NewUserRepository(pool),
		AdminLogs: repository.NewAdminLogRepository(pool),
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.HTTPServer != nil {
		err = s.HTTPServer.Shutdown(ctx)
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.hub != nil {
		s.hub.StopRedisSubscriber()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.mqConn != nil {
		_ = s.mqConn.Close()
	}
	if s.assistant != nil {
		s.assistant.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

type unconfiguredAssistant struct {
	model string
}

func (a unconfiguredAssistant) Reply(context.Context, []domain.Message, *domain.File) (string, error) {
	return "", &domain.AssistantError{Model: a.model, Err: errors.New("GEMINI_API_KEY is not set")}
}
