// Package app assembles the API: backends, domain services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/appointments"
	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/catalog"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/counters"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/inventory"
	"github.com/openlis/lis-api/internal/jobs"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/orders"
	"github.com/openlis/lis-api/internal/patients"
	"github.com/openlis/lis-api/internal/reports"
	"github.com/openlis/lis-api/internal/sessions"
	"github.com/openlis/lis-api/internal/storage"
	"github.com/openlis/lis-api/internal/users"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Services are the domain services shared by the router, the job runner and the
// admin CLI.
type Services struct {
	Audit        *auditlog.Service
	Patients     *patients.Service
	Catalog      *catalog.Service
	Appointments *appointments.Service
	Orders       *orders.Service
	Inventory    *inventory.Service
	Users        *users.Service
	Sessions     *sessions.Service
	Blacklist    *sessions.Blacklist
	Reports      *reports.Service
	Jobs         *jobs.Runner
}

type App struct {
	Config   *config.Config
	Services *Services

	mongo     *mongo.Client
	redis     *redis.Client
	startedAt time.Time
}

// New connects the configured backends and builds every service. An empty
// MONGODB_URI selects the in-memory database and an empty REDIS_HOST disables
// Redis; the API is fully functional either way on a single instance.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, startedAt: time.Now()}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		logger.Infof("connected to Redis at %s", addr)
		a.redis = client
	}

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts)
		if err != nil {
			a.Close(context.Background())
			return nil, err
		}
		a.mongo = client
		db = client.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			a.Close(context.Background())
			return nil, err
		}
		logger.Infof("using MongoDB database %q", cfg.MongoDB.Database)
	} else {
		logger.Warnf("MONGODB_URI is not set; data is kept in memory and lost on restart")
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	a.Services = buildServices(cfg, db, a.redis, blobs)
	return a, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.MinIO.Endpoint == "" {
		return storage.NewMemoryStore(cfg.MinIO.Bucket), nil
	}
	return storage.NewMinIOStorage(ctx, cfg.MinIO)
}

// repos groups one backend's repositories.
type repos struct {
	audit        auditlog.Repository
	patients     patients.Repository
	tests        catalog.TestRepository
	instruments  catalog.InstrumentRepository
	appointments appointments.Repository
	orders       orders.Repository
	inventory    inventory.Repository
	users        users.Repository
	sessions     sessions.Repository
	counter      counters.Counter
	reports      reports.Source
}

func mongoRepos(db *mongo.Database) repos {
	return repos{
		audit:        auditlog.NewMongoRepository(db.Collection(database.ColAuditLogs)),
		patients:     patients.NewMongoRepository(db.Collection(database.ColPatients)),
		tests:        catalog.NewMongoTestRepository(db.Collection(database.ColTestCatalog)),
		instruments:  catalog.NewMongoInstrumentRepository(db.Collection(database.ColInstruments)),
		appointments: appointments.NewMongoRepository(db.Collection(database.ColAppointments)),
		orders:       orders.NewMongoRepository(db.Collection(database.ColOrders)),
		inventory:    inventory.NewMongoRepository(db.Collection(database.ColInventory)),
		users:        users.NewMongoRepository(db.Collection(database.ColUsers)),
		sessions:     sessions.NewMongoRepository(db.Collection(database.ColSessions)),
		counter:      counters.NewMongoCounter(db.Collection(database.ColCounters)),
		reports:      reports.NewMongoSource(db.Collection(database.ColOrders), db.Collection(database.ColAppointments)),
	}
}

func memoryRepos(mem *database.MemDB) repos {
	return repos{
		audit:        auditlog.NewMemoryRepository(mem),
		patients:     patients.NewMemoryRepository(mem),
		tests:        catalog.NewMemoryTestRepository(mem),
		instruments:  catalog.NewMemoryInstrumentRepository(mem),
		appointments: appointments.NewMemoryRepository(mem),
		orders:       orders.NewMemoryRepository(mem),
		inventory:    inventory.NewMemoryRepository(mem),
		users:        users.NewMemoryRepository(mem),
		sessions:     sessions.NewMemoryRepository(),
		counter:      counters.NewMemoryCounter(),
		reports:      reports.NewMemorySource(mem),
	}
}

func buildServices(cfg *config.Config, db *mongo.Database, rdb *redis.Client, blobs storage.BlobStore) *Services {
	var r repos
	if db != nil {
		r = mongoRepos(db)
	} else {
		r = memoryRepos(database.NewMemDB())
		if rdb != nil {
			// sequences survive an API restart even though records do not
			r.counter = counters.NewRedisCounter(rdb, "counter:")
		}
	}
	var locker appointments.Locker = appointments.NewLocalLocker()
	if rdb != nil {
		r.sessions = sessions.NewRedisRepository(rdb, "session:")
		locker = appointments.NewRedisLocker(rdb)
	}

	ids := counters.NewGenerator(r.counter)
	s := &Services{}
	s.Audit = auditlog.NewService(r.audit)
	s.Sessions = sessions.NewService(r.sessions)
	s.Blacklist = sessions.NewBlacklist(rdb).WithUserTTL(cfg.JWT.AccessTokenTTL)
	s.Users = users.NewService(r.users, s.Sessions, s.Audit).WithTokenRevoker(s.Blacklist)
	s.Patients = patients.NewService(r.patients, ids, s.Audit)
	s.Catalog = catalog.NewService(r.tests, r.instruments, s.Audit)
	s.Appointments = appointments.NewService(r.appointments, locker, s.Patients, s.Audit, appointments.Options{
		DefaultDurationMinutes: cfg.Scheduling.DefaultDurationMinutes,
		LockTTL:                cfg.Scheduling.LockTTL,
	})
	s.Orders = orders.NewService(r.orders, s.Catalog, s.Catalog, s.Patients, s.Appointments, ids, s.Audit)
	s.Patients.SetOrderChecker(s.Orders)
	s.Inventory = inventory.NewService(r.inventory, s.Audit)
	s.Reports = reports.NewService(r.reports, blobs, s.Inventory)
	s.Jobs = jobs.NewRunner(s.Appointments, s.Inventory, jobs.Options{
		NoShowGrace:      time.Duration(cfg.Scheduling.NoShowGraceMinutes) * time.Minute,
		ExpiryWindowDays: cfg.Jobs.ExpiryWindowDays,
	})
	return s
}

// Bootstrap creates the configured admin account if it does not exist yet.
func (a *App) Bootstrap(ctx context.Context) error {
	b := a.Config.Bootstrap
	if b.AdminPassword == "" {
		return nil
	}
	_, err := a.Services.Users.GetByUsername(ctx, b.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apierror.ErrNotFound) {
		return err
	}
	u, err := a.Services.Users.Create(ctx, users.CreateInput{
		Username: b.AdminUsername,
		Name:     "Administrator",
		Role:     models.RoleAdmin,
		Password: b.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Infof("created bootstrap admin %q", u.Username)
	return nil
}

// Ping reports the health of each configured backend.
func (a *App) Ping(ctx context.Context) map[string]error {
	deps := map[string]error{}
	if a.mongo != nil {
		deps["mongodb"] = a.mongo.Ping(ctx, nil)
	}
	if a.redis != nil {
		deps["redis"] = a.redis.Ping(ctx).Err()
	}
	return deps
}

// Handler builds the HTTP router.
func (a *App) Handler() *gin.Engine { return newRouter(a) }

// Close releases backend connections.
func (a *App) Close(ctx context.Context) {
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongodb disconnect: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warnf("redis close: %v", err)
		}
	}
}
