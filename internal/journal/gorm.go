package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type appliedCommand struct {
	ID          uint   `gorm:"primaryKey"`
	Session     string `gorm:"size:16;index:idx_session_version"`
	Version     int64  `gorm:"index:idx_session_version"`
	Operation   string `gorm:"size:32"`
	OpCode      int
	TargetID    int
	TargetValue int
	Err         string
	AppliedAt   time.Time
}

func (appliedCommand) TableName() string { return "applied_commands" }

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects through gorm's pgx-backed driver and migrates the journal table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&appliedCommand{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, entries []Entry) error {
	records := make([]appliedCommand, len(entries))
	for i, e := range entries {
		records[i] = toRecord(e)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		return fmt.Errorf("save %d journal entries: %w", len(entries), err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(e Entry) appliedCommand {
	return appliedCommand{
		Session:     e.Session,
		Version:     e.Version,
		Operation:   e.Operation,
		OpCode:      e.OpCode,
		TargetID:    e.TargetID,
		TargetValue: e.TargetValue,
		Err:         e.Err,
		AppliedAt:   e.AppliedAt.UTC(),
	}
}
