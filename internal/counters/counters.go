// Package counters generates the human-readable identifiers printed on labels and
// requisitions: MRNs, order numbers and accession numbers.
package counters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Counter hands out strictly increasing sequence numbers per name, starting at 1.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// MongoCounter keeps sequences in a counters collection as {_id: name, seq: n}.
type MongoCounter struct {
	col *mongo.Collection
}

func NewMongoCounter(col *mongo.Collection) *MongoCounter {
	return &MongoCounter{col: col}
}

func (m *MongoCounter) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	return doc.Seq, nil
}

// RedisCounter uses INCR on "<prefix><name>".
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "counter:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (r *RedisCounter) Next(ctx context.Context, name string) (int64, error) {
	n, err := r.client.Incr(ctx, r.prefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	return n, nil
}

// MemoryCounter is the in-process counter used with the in-memory database.
type MemoryCounter struct {
	mu  sync.Mutex
	seq map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{seq: map[string]int64{}}
}

func (m *MemoryCounter) Next(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[name]++
	return m.seq[name], nil
}

// Generator formats counter values into identifiers.
type Generator struct {
	c   Counter
	now func() time.Time
}

func NewGenerator(c Counter) *Generator {
	return &Generator{c: c, now: time.Now}
}

// WithClock overrides the clock used for date-scoped sequences.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// NextMRN returns e.g. "MRN000042".
func (g *Generator) NextMRN(ctx context.Context) (string, error) {
	n, err := g.c.Next(ctx, "mrn")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MRN%06d", n), nil
}

// NextOrderNumber returns e.g. "ORD-20261016-0007"; the sequence restarts daily.
func (g *Generator) NextOrderNumber(ctx context.Context) (string, error) {
	day := g.now().UTC().Format("20060102")
	n, err := g.c.Next(ctx, "order:"+day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", day, n), nil
}

// NextAccession returns e.g. "A2610160003"; the sequence restarts daily.
func (g *Generator) NextAccession(ctx context.Context) (string, error) {
	day := g.now().UTC().Format("060102")
	n, err := g.c.Next(ctx, "accession:"+day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("A%s%04d", day, n), nil
}
