package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// VecIndex answers similarity searches from a local sqlite-vec index:
// the query text is embedded, then matched against the stored passage
// vectors with KNN. Ingestion goes through Add, one passage at a time.
type VecIndex struct {
	db       *sql.DB
	embedder Embedder
	dims     int
}

// NewVecIndex opens the index at path. dims must match the embedding
// model's vector width.
func NewVecIndex(path string, embedder Embedder, dims int) (*VecIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector dims must be positive, got %d", dims)
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_passages USING vec0(embedding float[%d])`, dims),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index schema: %w", err)
		}
	}

	return &VecIndex{db: db, embedder: embedder, dims: dims}, nil
}

// Add embeds and stores one passage.
func (v *VecIndex) Add(ctx context.Context, content string) error {
	vec, err := v.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed passage: %w", err)
	}
	if len(vec) != v.dims {
		return fmt.Errorf("embedding has %d dims, index expects %d", len(vec), v.dims)
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO passages (content) VALUES (?)`, content)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert passage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("passage rowid: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_passages (rowid, embedding) VALUES (?, ?)`, id, blob); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert embedding: %w", err)
	}
	return tx.Commit()
}

func (v *VecIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT p.content
		FROM vec_passages v
		JOIN passages p ON p.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	var passages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		passages = append(passages, content)
	}
	return passages, rows.Err()
}

func (v *VecIndex) Close() error {
	return v.db.Close()
}
