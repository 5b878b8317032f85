package repository

import (
	"context"

	"qa-explainer-video/internal/domain/model"
)

type KBSectionRepository interface {
	Upsert(ctx context.Context, tx Tx, sections []model.KBSection) error

	// ListIDs returns the keys already present, so seeding can skip
	// re-embedding unchanged sections.
	ListIDs(ctx context.Context) ([]string, error)

	// ListAll returns every section including its embedding. The KB is
	// small (documentation chunks), so retrieval ranks in process.
	ListAll(ctx context.Context) ([]model.KBSection, error)
}
