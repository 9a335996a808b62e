package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

// GormStore keeps the lock table and the holiday calendar in a relational database.
type GormStore struct {
	logger *logger.Logger

	Conn      *gorm.DB
	isolation sql.IsolationLevel
}

// GormOption configures a GormStore.
type GormOption func(*GormStore)

// WithIsolation sets the isolation level of the lock creation transaction.
// Postgres needs sql.LevelSerializable; SQLite only accepts the default level
// and is serializable anyway.
func WithIsolation(level sql.IsolationLevel) GormOption {
	return func(s *GormStore) {
		s.isolation = level
	}
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard logger
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	store, err := NewGormStore(db, logger, WithIsolation(sql.LevelSerializable))
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return store, nil
}

// NewGormStore wraps an open connection and migrates the lock and holiday tables.
func NewGormStore(db *gorm.DB, logger *logger.Logger, opts ...GormOption) (*GormStore, error) {
	if err := db.AutoMigrate(&models.DistributedLock{}, &models.Holiday{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	store := &GormStore{Conn: db, logger: logger, isolation: sql.LevelDefault}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (db *GormStore) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// serializationFailure is the SQLSTATE Postgres reports when a serializable
// transaction loses to a concurrent commit.
const serializationFailure = "40001"

// TryCreate inserts the lock row relying on the unique index on lock_key.
// Losing to a concurrent insert of the same key reports (false, nil), whether
// the database answers with a unique violation or a serialization failure.
func (db *GormStore) TryCreate(ctx context.Context, lock *models.DistributedLock) (bool, error) {
	created := false
	err := db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lock_key"}},
			DoNothing: true,
		}).Create(lock)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return nil
	}, &sql.TxOptions{Isolation: db.isolation})
	if errors.Is(err, gorm.ErrDuplicatedKey) || isSerializationFailure(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lock %q: %w", lock.LockKey, err)
	}
	return created, nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

func (db *GormStore) FindByKey(ctx context.Context, key string) (*models.DistributedLock, error) {
	var lock models.DistributedLock
	if err := db.Conn.WithContext(ctx).Where("lock_key = ?", key).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock %q: %w", key, err)
	}

	return &lock, nil
}

func (db *GormStore) DeleteIfOwnedBy(ctx context.Context, key, owner string) (bool, error) {
	res := db.Conn.WithContext(ctx).
		Where("lock_key = ? AND owner = ?", key, owner).
		Delete(&models.DistributedLock{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete lock %q: %w", key, res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (db *GormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := db.Conn.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.DistributedLock{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to remove expired locks: %w", res.Error)
	}

	return res.RowsAffected, nil
}

func (db *GormStore) MarkCollision(ctx context.Context, key string, now time.Time) error {
	err := db.Conn.WithContext(ctx).Model(&models.DistributedLock{}).
		Where("lock_key = ?", key).
		Updates(map[string]interface{}{
			"collision_observed": true,
			"collision_at":       now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark collision on lock %q: %w", key, err)
	}
	return nil
}

func (db *GormStore) ListHolidays(ctx context.Context) ([]*models.Holiday, error) {
	var holidays []*models.Holiday
	if err := db.Conn.WithContext(ctx).Order("calendar_code, day").Find(&holidays).Error; err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}

	return holidays, nil
}

// AddHoliday registers a non-business day, ignoring days already present.
func (db *GormStore) AddHoliday(ctx context.Context, holiday *models.Holiday) error {
	err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "calendar_code"}, {Name: "day"}},
		DoNothing: true,
	}).Create(holiday).Error
	if err != nil {
		return fmt.Errorf("failed to add holiday %s/%s: %w", holiday.CalendarCode, holiday.Day, err)
	}
	return nil
}
