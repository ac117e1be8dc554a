package services

import (
	"context"
	"sort"
	"sync"

	"appointment-notifier/models"

	"gorm.io/gorm"
)

// LogStore keeps the delivery audit trail. It is write-mostly history; the
// selector never consults it.
type LogStore interface {
	Save(ctx context.Context, entry *models.ReminderLog) error
	// List returns the newest entries first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]models.ReminderLog, error)
}

type GormLogStore struct {
	db *gorm.DB
}

// NewGormLogStore migrates the reminder_logs table and returns a store on db.
func NewGormLogStore(db *gorm.DB) (*GormLogStore, error) {
	if err := db.AutoMigrate(&models.ReminderLog{}); err != nil {
		return nil, err
	}
	return &GormLogStore{db: db}, nil
}

func (s *GormLogStore) Save(ctx context.Context, entry *models.ReminderLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormLogStore) List(ctx context.Context, limit int) ([]models.ReminderLog, error) {
	var logs []models.ReminderLog
	query := s.db.WithContext(ctx).Order("sent_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// MemoryLogStore is used when no database is configured.
type MemoryLogStore struct {
	mu      sync.Mutex
	entries []models.ReminderLog
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

func (s *MemoryLogStore) Save(ctx context.Context, entry *models.ReminderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryLogStore) List(ctx context.Context, limit int) ([]models.ReminderLog, error) {
	s.mu.Lock()
	out := append([]models.ReminderLog(nil), s.entries...)
	s.mu.Unlock()

	// newest first; equal timestamps keep reverse insertion order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
