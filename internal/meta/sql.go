package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// SQLStore reads slide metadata from the viewer's MySQL database.
type SQLStore struct {
	db    *sql.DB
	table string
}

// OpenSQL connects to the metadata database. The table needs columns
// slide_id, filepath, mpp, label_path and annotations (JSON, nullable).
func OpenSQL(dsn, table string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata db unreachable: %w", err)
	}
	return &SQLStore{db: db, table: table}, nil
}

// Slide fetches one slide's metadata.
func (s *SQLStore) Slide(ctx context.Context, id string) (*SlideInfo, error) {
	query := fmt.Sprintf(
		"SELECT slide_id, filepath, mpp, label_path, annotations FROM %s WHERE slide_id = ?", s.table)

	var (
		info        SlideInfo
		labelPath   sql.NullString
		annotations []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&info.ID, &info.Path, &info.MPP, &labelPath, &annotations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSlideNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}

	info.LabelPath = labelPath.String
	info.Annotations, err = ParseAnnotations(annotations)
	if err != nil {
		return nil, fmt.Errorf("slide %s: %w", id, err)
	}
	return &info, nil
}

// ListIDs returns all slide identifiers in the table.
func (s *SQLStore) ListIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT slide_id FROM %s ORDER BY slide_id", s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("metadata scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
