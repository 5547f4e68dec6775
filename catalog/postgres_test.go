package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftdesk/scriptstore/interfaces"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestListScriptFiles(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "script_id", "title", "file_type", "version", "is_latest", "file_url"}).
		AddRow(int64(1), int64(10), "Nightfall", "SCREENPLAY", 1, false, "https://cdn.example/scripts/1_a_v1.pdf").
		AddRow(int64(2), int64(10), "Nightfall", "SCREENPLAY", 2, true, "https://cdn.example/scripts/2_b_v2.pdf")

	mock.ExpectQuery(`(?s)SELECT\s+f\.id.*FROM script_files f.*JOIN scripts s.*ORDER BY f\.id`).
		WillReturnRows(rows)

	refs, err := repo.ListScriptFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, interfaces.KindScriptFile, refs[0].Kind)
	assert.Equal(t, int64(1), refs[0].RefID)
	assert.Equal(t, "Nightfall", refs[0].OwnerTitle)
	assert.Equal(t, interfaces.ScreenplayFile, refs[0].FileType)
	assert.False(t, refs[0].IsLatest)
	assert.True(t, refs[1].IsLatest)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCoverImages(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "cover_image_url"}).
		AddRow(int64(10), "Nightfall", "https://cdn.example/covers/1_a_cover.png")

	mock.ExpectQuery(`(?s)SELECT id, title, cover_image_url.*FROM scripts.*WHERE cover_image_url IS NOT NULL.*ORDER BY id`).
		WillReturnRows(rows)

	refs, err := repo.ListCoverImages(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, interfaces.KindCoverImage, refs[0].Kind)
	assert.Equal(t, "cover_image_url", refs[0].Field)
	assert.Equal(t, int64(10), refs[0].OwnerID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProfilePhotos_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT id, name, profile_photo_url.*FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "profile_photo_url"}))

	refs, err := repo.ListProfilePhotos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteScriptFile_RowAlreadyGone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// Zero rows affected: the row vanished under a cascade delete.
	// That is convergence, not an error.
	mock.ExpectExec(`DELETE FROM script_files WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteScriptFile(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCoverImage(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE scripts SET cover_image_url = NULL WHERE id = \$1`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearCoverImage(context.Background(), 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearProfilePhoto_WriteError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET profile_photo_url = NULL WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection closed"))

	err := repo.ClearProfilePhoto(context.Background(), 7)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceScriptFile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE script_files SET is_latest = FALSE.*WHERE script_id = \$1 AND file_type = \$2 AND is_latest`).
		WithArgs(int64(10), "SCREENPLAY").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)INSERT INTO script_files.*RETURNING version`).
		WithArgs(int64(10), "SCREENPLAY", "https://cdn.example/scripts/3_c_v3.pdf").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectCommit()

	version, err := repo.ReplaceScriptFile(context.Background(), 10, interfaces.ScreenplayFile, "https://cdn.example/scripts/3_c_v3.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceScriptFile_RollsBackOnInsertError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE script_files SET is_latest = FALSE`).
		WithArgs(int64(10), "TREATMENT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)INSERT INTO script_files`).
		WithArgs(int64(10), "TREATMENT", "/files/scripts/1_a_t.pdf").
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	_, err := repo.ReplaceScriptFile(context.Background(), 10, interfaces.TreatmentFile, "/files/scripts/1_a_t.pdf")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
