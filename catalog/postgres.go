package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/draftdesk/scriptstore/interfaces"
)

// PostgresRepository implements Repository over PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to PostgreSQL through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// ListScriptFiles returns every script file history row, joined with the
// owning script's title, ordered by row id for deterministic scans.
func (r *PostgresRepository) ListScriptFiles(ctx context.Context) ([]interfaces.FileReference, error) {
	query := `
		SELECT f.id, f.script_id, s.title, f.file_type, f.version, f.is_latest, f.file_url
		FROM script_files f
		JOIN scripts s ON s.id = f.script_id
		ORDER BY f.id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list script files: %w", err)
	}
	defer rows.Close()

	var result []interfaces.FileReference
	for rows.Next() {
		ref := interfaces.FileReference{Kind: interfaces.KindScriptFile, Field: "file_url"}
		var fileType string
		if err := rows.Scan(&ref.RefID, &ref.OwnerID, &ref.OwnerTitle, &fileType, &ref.Version, &ref.IsLatest, &ref.URL); err != nil {
			return nil, err
		}
		ref.FileType = interfaces.ScriptFileType(fileType)
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListCoverImages returns every script with a non-null cover image field,
// ordered by script id.
func (r *PostgresRepository) ListCoverImages(ctx context.Context) ([]interfaces.FileReference, error) {
	query := `
		SELECT id, title, cover_image_url
		FROM scripts
		WHERE cover_image_url IS NOT NULL
		ORDER BY id
	`
	return r.listOwnerURLs(ctx, query, interfaces.KindCoverImage, "cover_image_url")
}

// ListProfilePhotos returns every user with a non-null profile photo
// field, ordered by user id.
func (r *PostgresRepository) ListProfilePhotos(ctx context.Context) ([]interfaces.FileReference, error) {
	query := `
		SELECT id, name, profile_photo_url
		FROM users
		WHERE profile_photo_url IS NOT NULL
		ORDER BY id
	`
	return r.listOwnerURLs(ctx, query, interfaces.KindProfilePhoto, "profile_photo_url")
}

func (r *PostgresRepository) listOwnerURLs(ctx context.Context, query string, kind interfaces.FileKind, field string) ([]interfaces.FileReference, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s references: %w", kind, err)
	}
	defer rows.Close()

	var result []interfaces.FileReference
	for rows.Next() {
		ref := interfaces.FileReference{Kind: kind, Field: field}
		if err := rows.Scan(&ref.OwnerID, &ref.OwnerTitle, &ref.URL); err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteScriptFile removes one file history row. Zero rows affected means
// the row already vanished (reconciled earlier, or cascade-deleted with
// its script) and is success.
func (r *PostgresRepository) DeleteScriptFile(ctx context.Context, refID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM script_files WHERE id = $1`, refID)
	if err != nil {
		return fmt.Errorf("failed to delete script file %d: %w", refID, err)
	}
	return nil
}

// ClearCoverImage nulls the cover image field, keeping the script row.
func (r *PostgresRepository) ClearCoverImage(ctx context.Context, scriptID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scripts SET cover_image_url = NULL WHERE id = $1`, scriptID)
	if err != nil {
		return fmt.Errorf("failed to clear cover image for script %d: %w", scriptID, err)
	}
	return nil
}

// ClearProfilePhoto nulls the photo field, keeping the user row.
func (r *PostgresRepository) ClearProfilePhoto(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET profile_photo_url = NULL WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear profile photo for user %d: %w", userID, err)
	}
	return nil
}

// ReplaceScriptFile demotes the current latest row for (scriptID,
// fileType) and inserts the new version as latest, in one transaction.
func (r *PostgresRepository) ReplaceScriptFile(ctx context.Context, scriptID int64, fileType interfaces.ScriptFileType, fileURL string) (int, error) {
	var version int
	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE script_files SET is_latest = FALSE
			WHERE script_id = $1 AND file_type = $2 AND is_latest
		`, scriptID, string(fileType))
		if err != nil {
			return fmt.Errorf("failed to demote latest: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO script_files (script_id, file_type, version, is_latest, file_url)
			VALUES ($1, $2,
				(SELECT COALESCE(MAX(version), 0) + 1 FROM script_files WHERE script_id = $1 AND file_type = $2),
				TRUE, $3)
			RETURNING version
		`, scriptID, string(fileType), fileURL).Scan(&version)
		if err != nil {
			return fmt.Errorf("failed to insert new version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}
