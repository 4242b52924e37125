package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"textlens-backend/internal/extract"
	"textlens-backend/internal/shared/storage/object"
	"textlens-backend/internal/shared/telemetry"
)

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  DocumentsRepo
}

// Upload saves the file to object storage and records the document.
func (s *Service) Upload(ctx context.Context, userId, fileName string, r io.Reader) (Document, error) {
	if fileName == "" {
		return Document{}, ErrInvalidInput
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, userId, fileName, r)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:         uuid.NewString(),
		UserID:     userId,
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// Get returns a document owned by the user.
func (s *Service) Get(ctx context.Context, userId, documentID string) (Document, error) {
	if userId == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userId, documentID)
}

// Current returns the most recently uploaded document for a user.
func (s *Service) Current(ctx context.Context, userId string) (Document, error) {
	if userId == "" {
		return Document{}, errors.New("user id required")
	}
	return s.Repo.GetCurrentByUser(ctx, userId)
}

// List returns documents for a user, newest first.
func (s *Service) List(ctx context.Context, userId string, limit, offset int) ([]Document, error) {
	if userId == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userId, limit, offset)
}

// GetText returns the extracted text of a document, running extraction on
// first access and reusing the cached copy afterwards.
func (s *Service) GetText(ctx context.Context, userId, documentID string) (string, error) {
	doc, err := s.Repo.GetByID(ctx, userId, documentID)
	if err != nil {
		return "", err
	}

	if doc.ExtractedTextKey != "" {
		body, err := s.Store.Open(ctx, doc.ExtractedTextKey)
		if err == nil {
			defer body.Close()
			raw, readErr := io.ReadAll(body)
			if readErr == nil {
				return string(raw), nil
			}
			telemetry.Warn("documents.extracted_read_failed", map[string]any{
				"document_id": doc.ID,
				"error":       readErr.Error(),
			})
		}
		// Fall through and re-extract when the cached copy is unreadable.
	}

	text, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	if err := s.Repo.UpdateExtraction(ctx, userId, documentID, doc.StorageKey+".extracted.txt", time.Now().UTC()); err != nil {
		telemetry.Warn("documents.extraction_record_failed", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	}

	return text, nil
}
