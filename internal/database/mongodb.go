package database

import (
	"context"
	"fmt"
	"time"

	"github.com/openlis/lis-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	ColUsers        = "users"
	ColSessions     = "sessions"
	ColPatients     = "patients"
	ColOrders       = "orders"
	ColAppointments = "appointments"
	ColTestCatalog  = "test_catalog"
	ColInstruments  = "instruments"
	ColAuditLogs    = "audit_logs"
	ColInventory    = "inventory"
	ColCounters     = "counters"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectWithRetry retries ConnectMongo with exponential backoff to tolerate
// startup races with the database container.
func ConnectWithRetry(ctx context.Context, uri string, timeout time.Duration, maxAttempts int) (*mongo.Client, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		ColUsers:    {{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}},
		ColSessions: {{Keys: bson.D{{Key: "refreshToken", Value: 1}}, Options: unique}},
		ColPatients: {
			{Keys: bson.D{{Key: "mrn", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}},
		},
		ColOrders: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "samples.accessionNumber", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		ColAppointments: {
			{Keys: bson.D{{Key: "scheduledAt", Value: 1}}},
			{Keys: bson.D{{Key: "patientId", Value: 1}}},
		},
		ColTestCatalog: {{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)}},
		ColAuditLogs: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "entityType", Value: 1}, {Key: "entityId", Value: 1}}},
		},
		ColInventory: {{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for col, models := range specs {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique-index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
