package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantcore/backend/internal/infrastructure/config"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectTimeout = 10 * time.Second

// Database is the shared catalog connection pool. Tenant namespaces are reached through
// GormSchemaScope, never by switching this pool's search_path.
type Database struct {
	DB *gorm.DB
}

// DatabaseOption adjusts the gorm configuration before connecting
type DatabaseOption func(*gorm.Config)

// WithGormLogger routes statement logging through l
func WithGormLogger(l logger.Interface) DatabaseOption {
	return func(c *gorm.Config) { c.Logger = l }
}

// OpenDatabase connects to PostgreSQL and installs the namespace guard.
//
// Prepared statements stay disabled: they resolve table names once per connection and
// would keep pointing at the namespace that was bound when they were prepared.
func OpenDatabase(ctx context.Context, cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            false,
		TranslateError:         true,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := connect(ctx, postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, _ := db.DB.DB()
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	return db, nil
}

func connect(ctx context.Context, dialector gorm.Dialector, gormCfg *gorm.Config) (*Database, error) {
	gormCfg.DisableAutomaticPing = true
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d := &Database{DB: db}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := d.PingContext(pingCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := tenant.EnableNamespaceGuard(db, models.TenantTableNames); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to register namespace guard: %w", err)
	}
	return d, nil
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PingContext implements the readiness probe
func (d *Database) PingContext(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
