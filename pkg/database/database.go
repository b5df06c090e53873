package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   NewGormLogger(log, cfg.SlowQueryThreshold),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, codeScope config.CodeScope, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	for _, ext := range []string{"pgcrypto", "pg_trgm", "btree_gist"} {
		if err := db.Exec(fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", ext)).Error; err != nil {
			return fmt.Errorf("creating extension %s: %w", ext, err)
		}
	}

	schemas := []string{"clinical", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&professional.Professional{},
		&secretary.Secretary{},
		&secretary.Link{},
		&patient.Patient{},
		&appointment.Appointment{},
		&history.Entry{},
		&prescription.Prescription{},
		&inventory.Item{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	if err := applyCodeScope(db, codeScope); err != nil {
		return fmt.Errorf("applying inventory code scope: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

type ddl struct {
	name  string
	query string
}

var indexes = []ddl{
	// Last line of defence against double booking when two API replicas race.
	{
		name: "excl_appointments_professional_slot",
		query: `DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'excl_appointments_professional_slot') THEN
				ALTER TABLE clinical.appointments ADD CONSTRAINT excl_appointments_professional_slot
				EXCLUDE USING gist (professional_id WITH =, tstzrange(starts_at, ends_at, '[)') WITH &&)
				WHERE (status <> 'cancelled');
			END IF;
		END $$`,
	},
	{
		name:  "idx_appointments_professional_schedule",
		query: `CREATE INDEX IF NOT EXISTS idx_appointments_professional_schedule ON clinical.appointments (professional_id, starts_at) WHERE status <> 'cancelled'`,
	},
	{
		name:  "idx_patients_name_trgm",
		query: `CREATE INDEX IF NOT EXISTS idx_patients_name_trgm ON clinical.patients USING gin (name gin_trgm_ops)`,
	},
	{
		name:  "idx_inventory_name_trgm",
		query: `CREATE INDEX IF NOT EXISTS idx_inventory_name_trgm ON clinical.inventory_items USING gin (name gin_trgm_ops)`,
	},
	{
		name:  "uq_inventory_code_owner",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_inventory_code_owner ON clinical.inventory_items (code, professional_id) WHERE professional_id IS NOT NULL`,
	},
	{
		name:  "uq_inventory_code_shared",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_inventory_code_shared ON clinical.inventory_items (code) WHERE professional_id IS NULL`,
	},
	{
		name:  "idx_history_patient_consulted",
		query: `CREATE INDEX IF NOT EXISTS idx_history_patient_consulted ON clinical.medical_history (patient_id, consulted_at DESC)`,
	},
}

// codeScopeIndex makes item codes unique across every owner in global mode.
// The per-owner indexes above already cover professional mode, so the global
// one is dropped there.
func codeScopeIndex(scope config.CodeScope) ddl {
	if scope == config.CodeScopeGlobal {
		return ddl{
			name:  "uq_inventory_code_global",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS uq_inventory_code_global ON clinical.inventory_items (code)`,
		}
	}
	return ddl{
		name:  "uq_inventory_code_global",
		query: `DROP INDEX IF EXISTS clinical.uq_inventory_code_global`,
	}
}

func applyCodeScope(db *gorm.DB, scope config.CodeScope) error {
	idx := codeScopeIndex(scope)
	if err := db.Exec(idx.query).Error; err != nil {
		return fmt.Errorf("%s: %w", idx.name, err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("%s: %w", idx.name, err)
		}
	}
	return nil
}

// GormLogger routes gorm's statement log through zap. Statements slower than
// the threshold are logged at warn level; everything else at debug.
type GormLogger struct {
	log           *zap.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func NewGormLogger(log *zap.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		log:           log.Named("gorm").WithOptions(zap.AddCallerSkip(3)),
		slowThreshold: slowThreshold,
		level:         gormlogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error("query failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
