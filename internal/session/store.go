package session

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Record is the locally persisted operator state: the bearer token plus the
// identity it was last resolved to. It replaces the browser-local storage
// the web console kept its session in.
type Record struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	OperatorID string `gorm:"type:varchar(64);not null"`
	Name       string `gorm:"type:varchar(128)"`
	Role       string `gorm:"type:varchar(32)"`
	Token      string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Record) TableName() string { return "operator_sessions" }

var ErrNotFound = errors.New("session: no stored session")

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the local state database at path. A
// "file:name?mode=memory&cache=shared" DSN gives an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save replaces any previously stored session. One operator per console.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Record{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
}

func (s *Store) Load(ctx context.Context) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Order("id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Record{}).Error
}
