package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/repository"
)

var _ repository.KBSectionRepository = (*KBSectionRepo)(nil)

// KBSectionRepo persists embedded documentation chunks. Embeddings are small
// (hundreds of floats) and the corpus is tiny, so they live in a jsonb column
// and similarity is ranked in process rather than in the database.
type KBSectionRepo struct {
	pool *pgxpool.Pool
}

func NewKBSectionRepo(pool *pgxpool.Pool) *KBSectionRepo {
	return &KBSectionRepo{pool: pool}
}

func (r *KBSectionRepo) Upsert(ctx context.Context, tx repository.Tx, sections []model.KBSection) error {
	const q = `
INSERT INTO kb_sections (id, body, embedding, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
  body = EXCLUDED.body,
  embedding = EXCLUDED.embedding,
  updated_at = now();`

	for i := range sections {
		emb, err := json.Marshal(sections[i].Embedding)
		if err != nil {
			return err
		}
		if _, err := execSQL(ctx, r.pool, tx, q, sections[i].ID, sections[i].Body, emb); err != nil {
			return err
		}
	}
	return nil
}

func (r *KBSectionRepo) ListIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM kb_sections ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *KBSectionRepo) ListAll(ctx context.Context) ([]model.KBSection, error) {
	const q = `SELECT id, body, embedding FROM kb_sections;`
	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.KBSection
	for rows.Next() {
		var s model.KBSection
		var emb []byte
		if err := rows.Scan(&s.ID, &s.Body, &emb); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if err := json.Unmarshal(emb, &s.Embedding); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
