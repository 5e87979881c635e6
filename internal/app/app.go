// Package app wires configured backends into the services shared by the
// API server and the recalculation worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"carbon-scribe/mrv/mrv-backend/internal/auth"
	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/config"
	"carbon-scribe/mrv/mrv-backend/internal/credits"
	"carbon-scribe/mrv/mrv-backend/internal/farms"
	"carbon-scribe/mrv/mrv-backend/internal/reports"
	"carbon-scribe/mrv/mrv-backend/internal/reports/dashboard"
	"carbon-scribe/mrv/mrv-backend/pkg/storage"
)

// Components holds the configured backends. Optional backends are nil when
// their configuration is absent.
type Components struct {
	Config *config.Config
	Logger *zap.Logger
	Engine *calculation.Engine

	DB        *gorm.DB
	Reports   *reports.GormRepository
	Dashboard *dashboard.Aggregator
	Mongo     *mongo.Client
	Farms     *farms.MongoRepository

	Sink     *reports.MultiSink
	Notifier *reports.Notifier
	Tokens   *auth.TokenManager

	closers []func(context.Context) error
}

// Options select which backends Bootstrap may connect to
type Options struct {
	// FileOutput enables the local report file sink
	FileOutput bool
}

// Bootstrap connects every configured backend. On error, backends opened so
// far are closed.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Components, error) {
	c := &Components{
		Config: cfg,
		Logger: logger,
		Engine: calculation.NewEngine(),
		Tokens: auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer),
	}

	if err := c.bootstrap(ctx, opts); err != nil {
		if closeErr := c.Close(context.Background()); closeErr != nil {
			logger.Warn("Failed to close partially initialised backends", zap.Error(closeErr))
		}
		return nil, err
	}
	return c, nil
}

func (c *Components) bootstrap(ctx context.Context, opts Options) error {
	cfg := c.Config
	var sinks []reports.Sink

	if cfg.Database.Enabled {
		if err := c.openDatabase(); err != nil {
			return err
		}
		// the dashboard sink follows the database so invalidation sees the new row
		sinks = append(sinks, c.Reports, c.Dashboard)
	}

	if cfg.Mongo.URI != "" {
		if err := c.openMongo(ctx); err != nil {
			return err
		}
		db := c.Mongo.Database(cfg.Mongo.Database)
		c.Farms = farms.NewMongoRepository(db.Collection(cfg.Mongo.FarmsCollection))
		sinks = append(sinks, reports.NewMongoSink(db.Collection(cfg.Mongo.ReportsCollection)))
	}

	if cfg.Storage.Bucket != "" || cfg.Notifications.TopicARN != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
		if err != nil {
			return err
		}

		if cfg.Storage.Bucket != "" {
			client := storage.NewS3Client(awsCfg, cfg.Storage.Endpoint)
			sinks = append(sinks, reports.NewS3Sink(client, cfg.Storage.Bucket, cfg.Storage.Prefix))
			c.Logger.Info("Archiving reports to S3", zap.String("bucket", cfg.Storage.Bucket))
		}
		if cfg.Notifications.TopicARN != "" {
			c.Notifier = reports.NewNotifier(sns.NewFromConfig(awsCfg), cfg.Notifications.TopicARN, c.Logger)
			c.Logger.Info("Publishing verification notifications", zap.String("topic_arn", cfg.Notifications.TopicARN))
		}
	}

	if len(cfg.Search.Addresses) > 0 {
		indexer, err := c.openSearch(ctx)
		if err != nil {
			return err
		}
		sinks = append(sinks, indexer)
	}

	if opts.FileOutput && cfg.Processing.OutputDir != "" {
		sinks = append(sinks, reports.NewFileSink(cfg.Processing.OutputDir))
	}

	c.Sink = reports.NewMultiSink(sinks...).WithTimeout(cfg.Processing.SinkTimeout)
	c.Logger.Info("Report sinks configured", zap.Int("count", c.Sink.Len()))
	return nil
}

func (c *Components) openDatabase() error {
	dbCfg := c.Config.Database
	db, err := gorm.Open(postgres.Open(dbCfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(dbCfg.MaxConnections)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbCfg.MaxLifetime)
	c.closers = append(c.closers, func(context.Context) error { return sqlDB.Close() })

	repo := reports.NewGormRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return err
	}

	c.DB = db
	c.Reports = repo
	c.Dashboard = dashboard.NewAggregator(repo, c.Logger, dashboard.DefaultConfig())
	c.closers = append(c.closers, func(context.Context) error {
		c.Dashboard.Close()
		return nil
	})
	c.Logger.Info("Connected to database",
		zap.String("host", dbCfg.Host),
		zap.String("database", dbCfg.DBName))
	return nil
}

func (c *Components) openMongo(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.Config.Mongo.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	c.closers = append(c.closers, client.Disconnect)

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}

	c.Mongo = client
	c.Logger.Info("Connected to mongo", zap.String("database", c.Config.Mongo.Database))
	return nil
}

func (c *Components) openSearch(ctx context.Context) (*reports.SearchIndexer, error) {
	searchCfg := c.Config.Search
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: searchCfg.Addresses,
		Username:  searchCfg.Username,
		Password:  searchCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	indexer := reports.NewSearchIndexer(client, searchCfg.Index)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	c.Logger.Info("Indexing reports", zap.String("index", searchCfg.Index))
	return indexer, nil
}

// CreditsService returns a credits service over the configured sinks
func (c *Components) CreditsService() *credits.Service {
	var notifier credits.ReadyNotifier
	if c.Notifier != nil {
		notifier = c.Notifier
	}
	var sink reports.Sink
	if c.Sink != nil && c.Sink.Len() > 0 {
		sink = c.Sink
	}
	return credits.NewService(c.Engine, sink, notifier, c.Logger)
}

// Close releases every opened backend in reverse order
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
