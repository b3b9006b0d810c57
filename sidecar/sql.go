package sidecar

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// InMemoryDSN opens an ephemeral SQLite database.
const InMemoryDSN = ":memory:"

// RejectionReason is one row of the rejection_reasons table.
type RejectionReason struct {
	RequestID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Reason    string `gorm:"not null"`
	UpdatedAt time.Time
}

// SQLStore keeps the reasons in a SQLite table through GORM.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (or creates) the database at dsn and migrates the table.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	if dsn == InMemoryDSN {
		// every pooled connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get underlying sql.DB")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&RejectionReason{}); err != nil {
		return nil, errors.Wrap(err, "failed to auto-migrate database schema")
	}
	return &SQLStore{db: db}, nil
}

// All returns every stored reason.
func (s *SQLStore) All(ctx context.Context) (map[uint64]string, error) {
	var rows []RejectionReason
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query rejection reasons")
	}
	out := make(map[uint64]string, len(rows))
	for _, row := range rows {
		out[row.RequestID] = row.Reason
	}
	return out, nil
}

// Put stores reason under id, replacing any previous one.
func (s *SQLStore) Put(ctx context.Context, id uint64, reason string) error {
	row := RejectionReason{RequestID: id, Reason: reason}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "updated_at"}),
	}).Create(&row).Error
	return errors.Wrap(err, "failed to store rejection reason")
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
