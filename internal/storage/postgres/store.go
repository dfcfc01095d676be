package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"
)

const schema = `
CREATE TABLE IF NOT EXISTS rag_indexes (
	repository_id TEXT PRIMARY KEY,
	branch        TEXT NOT NULL DEFAULT '',
	dimension     INTEGER NOT NULL,
	files         INTEGER NOT NULL,
	built_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rag_chunks (
	repository_id TEXT NOT NULL REFERENCES rag_indexes (repository_id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	file_path     TEXT NOT NULL,
	start_line    INTEGER NOT NULL,
	end_line      INTEGER NOT NULL,
	chunk_index   INTEGER NOT NULL,
	content       TEXT NOT NULL,
	embedding     DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (repository_id, position)
);
`

// Store keeps repository indexes in PostgreSQL. A snapshot is replaced inside
// one transaction, so a reader never sees a partially written index.
type Store struct {
	db  *sql.DB
	log logze.Logger
}

var _ rag.Store = (*Store)(nil)

// New opens the database and creates the tables when they are missing
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	connector, err := pq.NewConnector(cfg.DSN)
	if err != nil {
		return nil, errm.Wrap(err, "parse dsn")
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "ping database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "create schema")
	}

	return &Store{
		db:  db,
		log: logze.With("component", "postgres_store"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, repositoryID string) (*rag.RepositoryIndex, error) {
	var (
		branch  string
		builtAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT branch, built_at FROM rag_indexes WHERE repository_id = $1`, repositoryID,
	).Scan(&branch, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errm.Wrap(err, "select index")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, start_line, end_line, chunk_index, content, embedding
		 FROM rag_chunks WHERE repository_id = $1 ORDER BY position`, repositoryID)
	if err != nil {
		return nil, errm.Wrap(err, "select chunks")
	}
	defer rows.Close()

	var chunks []model.CodeChunk
	for rows.Next() {
		var (
			c         model.CodeChunk
			embedding pq.Float64Array
		)
		if err := rows.Scan(&c.FilePath, &c.StartLine, &c.EndLine, &c.ChunkIndex, &c.Content, &embedding); err != nil {
			return nil, errm.Wrap(err, "scan chunk")
		}
		c.Embedding = toFloat32(embedding)
		c.Location = model.ChunkLocation(c.FilePath, c.StartLine, c.EndLine)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errm.Wrap(err, "iterate chunks")
	}

	idx, err := rag.NewRepositoryIndex(repositoryID, branch, chunks)
	if err != nil {
		return nil, errm.Wrap(err, "stored index is inconsistent", "repository_id", repositoryID)
	}
	idx.BuiltAt = builtAt

	return idx, nil
}

func (s *Store) Put(ctx context.Context, index *rag.RepositoryIndex) (err error) {
	if index == nil {
		return errm.New("nil index")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errm.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Err(rbErr, "failed to rollback", "repository_id", index.RepositoryID)
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rag_indexes (repository_id, branch, dimension, files, built_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (repository_id) DO UPDATE SET
			branch = EXCLUDED.branch,
			dimension = EXCLUDED.dimension,
			files = EXCLUDED.files,
			built_at = EXCLUDED.built_at`,
		index.RepositoryID, index.Branch, index.Dimension, index.Files, index.BuiltAt,
	)
	if err != nil {
		return errm.Wrap(err, "upsert index")
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM rag_chunks WHERE repository_id = $1`, index.RepositoryID); err != nil {
		return errm.Wrap(err, "delete old chunks")
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("rag_chunks",
		"repository_id", "position", "file_path", "start_line", "end_line", "chunk_index", "content", "embedding"))
	if err != nil {
		return errm.Wrap(err, "prepare copy")
	}
	for i, c := range index.Chunks {
		if _, err = stmt.ExecContext(ctx, index.RepositoryID, i, c.FilePath, c.StartLine, c.EndLine, c.ChunkIndex, c.Content, pq.Float64Array(toFloat64(c.Embedding))); err != nil {
			stmt.Close()
			return errm.Wrap(err, "copy chunk", "location", c.Location)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errm.Wrap(err, "flush copy")
	}
	if err = stmt.Close(); err != nil {
		return errm.Wrap(err, "close copy")
	}

	if err = tx.Commit(); err != nil {
		return errm.Wrap(err, "commit")
	}

	s.log.Debug("index saved", "repository_id", index.RepositoryID, "chunks", index.Len())
	return nil
}

func (s *Store) Delete(ctx context.Context, repositoryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rag_indexes WHERE repository_id = $1`, repositoryID); err != nil {
		return errm.Wrap(err, "delete index")
	}
	return nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
