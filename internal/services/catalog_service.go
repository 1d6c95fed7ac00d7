package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohong/poof/internal/models"
	"gorm.io/gorm"
)

// CatalogService is the owner-scoped persistence boundary for catalog entries.
type CatalogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts one active entry and returns it with server timestamps.
func (s *CatalogService) Create(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	entry.Status = models.StatusActive
	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create catalog entry: %w", err)
	}
	return entry, nil
}

// ListActive returns the owner's active entries, newest first.
func (s *CatalogService) ListActive(ctx context.Context, ownerID string) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.StatusActive).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	return entries, nil
}

// ListArchive returns the owner's sold, donated and tossed entries, most
// recently updated first.
func (s *CatalogService) ListArchive(ctx context.Context, ownerID string) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status <> ?", ownerID, models.StatusActive).
		Order("updated_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list archived entries: %w", err)
	}
	return entries, nil
}

// UpdateStatus moves an entry to status. The entry is loaded first so that
// another owner's entry reports ErrNotOwner rather than ErrEntryNotFound.
// Setting the status an entry already holds still refreshes updated_at.
func (s *CatalogService) UpdateStatus(ctx context.Context, ownerID string, id uuid.UUID, status string) (*models.CatalogEntry, error) {
	target, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	var entry models.CatalogEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("load catalog entry: %w", err)
	}
	if entry.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	now := s.now()
	if !now.After(entry.UpdatedAt) {
		now = entry.UpdatedAt.Add(time.Microsecond)
	}
	err = s.db.WithContext(ctx).Model(&entry).
		Where("owner_id = ?", ownerID).
		UpdateColumns(map[string]interface{}{
			"status":     target,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("update catalog entry status: %w", err)
	}
	entry.Status = target
	entry.UpdatedAt = now
	return &entry, nil
}
