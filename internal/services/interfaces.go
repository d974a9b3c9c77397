package services

import (
	"context"

	"collab-docs/internal/models"
)

// Interfaces are declared here, in the consuming package, rather than next to
// their implementations. The snapshot service only needs the two repository
// methods below; the repository itself never learns about this interface.

// DocumentRepository defines what services need from document storage.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	SaveSnapshot(ctx context.Context, id, title, content string) error
}
