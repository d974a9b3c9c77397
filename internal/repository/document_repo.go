package repository

import (
	"context"
	"fmt"

	"collab-docs/internal/models"

	"gorm.io/gorm"
)

// DocumentRepositoryImpl handles all database operations for documents using
// GORM. It is the concrete implementation; consumers declare the interface
// slice they need ("accept interfaces, return structs").
type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepositoryImpl {
	return &DocumentRepositoryImpl{db: db}
}

// Create inserts a new document. An id supplied by the client (the editor
// generates one for fresh documents) is kept; otherwise a UUID is generated
// in the BeforeCreate hook.
func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *models.DocumentCreate) (*models.Document, error) {
	document := &models.Document{
		ID:      doc.ID,
		Title:   doc.Title,
		Content: doc.Content,
	}
	if document.Title == "" {
		document.Title = "Untitled Document"
	}

	if err := r.db.WithContext(ctx).Create(document).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return document, nil
}

// GetByID retrieves a document by id. Soft-deleted documents are excluded.
func (r *DocumentRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// List returns documents with pagination, most recently modified first.
func (r *DocumentRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	var documents []*models.Document

	err := r.db.WithContext(ctx).
		Order("last_modified DESC").
		Limit(limit).
		Offset(offset).
		Find(&documents).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return documents, nil
}

// Update modifies an existing document from a partial update.
func (r *DocumentRepositoryImpl) Update(ctx context.Context, id string, update *models.DocumentUpdate) (*models.Document, error) {
	var doc models.Document

	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("document not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	// Build update map to handle nil pointers correctly
	updates := make(map[string]interface{})
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.Content != nil {
		updates["content"] = *update.Content
	}

	if err := r.db.WithContext(ctx).Model(&doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	return &doc, nil
}

// SaveSnapshot overwrites a document's title and content in full. This is the
// write path for live-session snapshots: last write wins, whole-document
// granularity, same as the broadcast policy. A document deleted mid-session
// is not an error; the snapshot is simply dropped.
func (r *DocumentRepositoryImpl) SaveSnapshot(ctx context.Context, id, title, content string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":   title,
			"content": content,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save snapshot: %w", result.Error)
	}

	return nil
}

// Delete performs a soft delete on the document.
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found: %s", id)
	}

	return nil
}
