// Package bootstrap turns configuration into connected backends for the
// binaries: storage slots for the tracker CLI and sinks for the collector.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ktrace/internal/config"
	"ktrace/internal/constants"
	"ktrace/internal/logger"
	"ktrace/pkg/migrations"
)

// DatabaseConnector opens backends on demand and closes whatever it opened.
type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger

	redis    *redis.Client
	postgres *sql.DB
	mongo    *mongo.Client
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.redis != nil {
		return dc.redis, nil
	}

	rc := dc.Config.Database.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected successfully", "addr", rdb.Options().Addr)
	dc.redis = rdb
	return rdb, nil
}

// InitPostgreSQL connects and, when database.run_migrations is set, applies
// the embedded migrations.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	if dc.postgres != nil {
		return dc.postgres, nil
	}

	pc := dc.Config.Database.Postgres
	if pc.Host == "" {
		return nil, fmt.Errorf("database.postgres.host is required")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.User, pc.Password, pc.Host, pc.Port, pc.DBName, pc.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Info("PostgreSQL migrations applied")
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	dc.postgres = db
	return db, nil
}

// InitMongoDB connects and returns the configured database with its
// collection indexes in place.
func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Database, error) {
	mc := dc.Config.Database.MongoDB
	if mc.URI == "" {
		return nil, fmt.Errorf("database.mongodb.uri is required")
	}

	dbName := mc.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}

	if dc.mongo == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		dc.Logger.Info("MongoDB connected successfully")
		dc.mongo = client
	}

	db := dc.mongo.Database(dbName)
	collection := mc.Collection
	if collection == "" {
		collection = constants.DefaultMongoCollection
	}
	if err := migrations.EnsureMongoCollection(ctx, db, collection); err != nil {
		return nil, err
	}
	return db, nil
}

func (dc *DatabaseConnector) MongoClient() *mongo.Client {
	return dc.mongo
}

// Shutdown closes every backend opened through dc.
func (dc *DatabaseConnector) Shutdown(ctx context.Context) error {
	var errs []error

	if dc.redis != nil {
		if err := dc.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
		dc.redis = nil
	}

	if dc.postgres != nil {
		if err := dc.postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
		dc.postgres = nil
	}

	if dc.mongo != nil {
		if err := dc.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
		dc.mongo = nil
	}

	return errors.Join(errs...)
}
