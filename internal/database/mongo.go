package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/bigkaa/filehub/internal/repository"
)

// defaultMongoDatabase — база по умолчанию, если в DSN не указана.
const defaultMongoDatabase = "filehub"

// ConnectMongo подключается к MongoDB, проверяет доступность
// и создаёт индексы коллекции files.
func ConnectMongo(ctx context.Context, dsn string, logger *slog.Logger) (*mongo.Client, *mongo.Collection, error) {
	cs, err := connstring.ParseAndValidate(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка парсинга DSN MongoDB: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка создания клиента MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection(repository.FilesCollection)
	if err := repository.EnsureMongoIndexes(ctx, coll); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	logger.Info("Подключение к MongoDB установлено",
		slog.Any("hosts", cs.Hosts),
		slog.String("database", dbName),
	)

	return client, coll, nil
}

// MongoReadinessChecker — проверка готовности MongoDB.
type MongoReadinessChecker struct {
	client *mongo.Client
}

// NewMongoReadinessChecker создаёт проверку готовности MongoDB.
func NewMongoReadinessChecker(client *mongo.Client) *MongoReadinessChecker {
	return &MongoReadinessChecker{client: client}
}

// CheckReady пингует primary.
func (c *MongoReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return "fail", fmt.Sprintf("MongoDB недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
