package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/infrastructure/config"
	"github.com/realaman90/koda-sub002/infrastructure/llm/openai"
	"github.com/realaman90/koda-sub002/infrastructure/messaging/eventbridge"
	"github.com/realaman90/koda-sub002/infrastructure/persistence/dynamodb"
	"github.com/realaman90/koda-sub002/infrastructure/persistence/memory"
	"github.com/realaman90/koda-sub002/infrastructure/providers/httpprovider"
	"github.com/realaman90/koda-sub002/infrastructure/storage/s3"
	"github.com/realaman90/koda-sub002/interfaces/http/rest"
	"github.com/realaman90/koda-sub002/interfaces/websocket"
	"github.com/realaman90/koda-sub002/pkg/auth"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// ServiceName identifies the engine in logs, metrics and traces
const ServiceName = "koda-engine"

// ProvideLogger creates a logger for the configured environment and level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(strings.ReplaceAll(ServiceName, "-", "_"))
}

// ProvideTracer installs the global tracer provider
func ProvideTracer(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	return observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.TracingEndpoint,
		SampleRate:  cfg.TraceSampleRate,
	})
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideGraphRepository selects the storage backend
func ProvideGraphRepository(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.GraphRepository {
	if cfg.StorageBackend == "dynamodb" {
		return dynamodb.NewGraphRepository(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	}
	logger.Warn("Using in-memory graph storage; graphs are lost on restart")
	return memory.NewGraphRepository()
}

// ProvideCapabilityRegistry creates the registry with the built-in table
func ProvideCapabilityRegistry() *capabilities.Registry {
	return capabilities.NewRegistry(nil)
}

// ProvideCapabilityWatcher loads and watches the capabilities file when one
// is configured. It returns nil otherwise.
func ProvideCapabilityWatcher(cfg *config.Config, registry *capabilities.Registry, logger *zap.Logger) (*config.CapabilityWatcher, error) {
	if cfg.CapabilitiesFile == "" {
		return nil, nil
	}
	watcher, err := config.NewCapabilityWatcher(cfg.CapabilitiesFile, registry, logger)
	if err != nil {
		return nil, err
	}
	watcher.Start()
	return watcher, nil
}

// ProvideScheduler creates the poll scheduler
func ProvideScheduler(logger *zap.Logger) *jobs.CronScheduler {
	return jobs.NewCronScheduler(logger)
}

// ProvideGenerationProvider creates the generation gateway client
func ProvideGenerationProvider(cfg *config.Config, logger *zap.Logger) ports.GenerationProvider {
	return httpprovider.NewClient(httpprovider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	}, nil, logger)
}

// ProvideAssetStorage creates S3 asset storage. It returns nil when no
// bucket is configured.
func ProvideAssetStorage(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.AssetStorage {
	if cfg.AssetBucket == "" {
		return nil
	}
	return s3.NewFromClient(awss3.NewFromConfig(awsCfg), s3.Config{
		Bucket:        cfg.AssetBucket,
		BaseURL:       cfg.AssetBaseURL,
		Region:        cfg.AWSRegion,
		PresignExpiry: cfg.PresignExpiry,
	}, logger)
}

// ProvideEventPublisher creates the EventBridge publisher. Local runs on
// in-memory storage publish nothing.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" || cfg.StorageBackend == "memory" {
		return nil
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvidePlanSource creates the OpenAI plan source. It returns nil when no
// API key is configured.
func ProvidePlanSource(cfg *config.Config, logger *zap.Logger) ports.PlanSource {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	return openai.NewPlanSource(openai.NewClient(cfg.OpenAIAPIKey, ""), cfg.OpenAIModel, logger)
}

// ProvideSessionService creates the session service
func ProvideSessionService(
	cfg *config.Config,
	repo ports.GraphRepository,
	registry *capabilities.Registry,
	provider ports.GenerationProvider,
	scheduler *jobs.CronScheduler,
	publisher ports.EventPublisher,
	planSource ports.PlanSource,
	logger *zap.Logger,
	metrics *observability.Collector,
) *services.SessionService {
	return services.NewSessionService(repo, registry, provider, scheduler, publisher, planSource,
		cfg.Domain(), logger, metrics)
}

// ProvideJWTValidator creates the token validator. It returns nil when no
// secret is configured, which serves every request as the dev user.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
}

// ProvideHub creates the websocket hub and starts its loop
func ProvideHub(logger *zap.Logger) *websocket.Hub {
	hub := websocket.NewHub(logger)
	go hub.Run()
	return hub
}

// ProvideWebSocketServer creates the websocket endpoint
func ProvideWebSocketServer(cfg *config.Config, hub *websocket.Hub, sessions *services.SessionService, logger *zap.Logger) *websocket.Server {
	wsCfg := websocket.DefaultServerConfig()
	if cfg.EnableCORS {
		wsCfg.AllowedOrigins = cfg.CORSOrigins
	}
	return websocket.NewServer(hub, sessions, wsCfg, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	sessions *services.SessionService,
	storage ports.AssetStorage,
	validator *auth.JWTValidator,
	ws *websocket.Server,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	if validator == nil {
		logger.Warn("No JWT secret configured; requests are served as the dev user",
			zap.String("userID", rest.DevUserID))
	}
	return rest.NewRouter(sessions, storage, validator, ws, metrics, rest.RouterConfig{
		CORSOrigins:   cfg.CORSOrigins,
		EnableCORS:    cfg.EnableCORS,
		EnableMetrics: cfg.EnableMetrics,
	}, logger)
}
