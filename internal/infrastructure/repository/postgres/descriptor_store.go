package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// DescriptorStore persists knowledge-base descriptors. Routing embeddings are
// stored as JSONB on the row so the router can rebuild its index without a
// round trip to the embedder.
type DescriptorStore struct {
	db *sql.DB
}

func NewDescriptorStore(db *sql.DB) *DescriptorStore {
	return &DescriptorStore{db: db}
}

func (r *DescriptorStore) Save(ctx context.Context, desc domain.KnowledgeBaseDescriptor) error {
	embeddingJSON, err := json.Marshal(desc.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO knowledge_bases (name, description, category, embedding, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (name) DO UPDATE
SET description = EXCLUDED.description, category = EXCLUDED.category, embedding = EXCLUDED.embedding
`, desc.Name, desc.Description, desc.Category, embeddingJSON, desc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	return nil
}

func (r *DescriptorStore) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	return nil
}

func (r *DescriptorStore) Get(ctx context.Context, name string) (*domain.KnowledgeBaseDescriptor, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT name, description, category, embedding, created_at
FROM knowledge_bases
WHERE name = $1
`, name)

	desc, err := scanDescriptor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrKnowledgeBaseNotFound, "get descriptor", fmt.Errorf("name %s", name))
		}
		return nil, fmt.Errorf("scan descriptor: %w", err)
	}
	return desc, nil
}

// List returns descriptors in creation order so routing tie-breaks stay
// stable across index rebuilds.
func (r *DescriptorStore) List(ctx context.Context) ([]domain.KnowledgeBaseDescriptor, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, description, category, embedding, created_at
FROM knowledge_bases
ORDER BY created_at ASC, name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query descriptors: %w", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeBaseDescriptor
	for rows.Next() {
		desc, err := scanDescriptor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		out = append(out, *desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return out, nil
}

func scanDescriptor(row rowScanner) (*domain.KnowledgeBaseDescriptor, error) {
	var desc domain.KnowledgeBaseDescriptor
	var embeddingRaw []byte

	if err := row.Scan(&desc.Name, &desc.Description, &desc.Category, &embeddingRaw, &desc.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(embeddingRaw, &desc.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return &desc, nil
}
