package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

var saveAt = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestSaveResult_SuccessWithUnits(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_scrape_status, consecutive_zero_count").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"last_scrape_status", "consecutive_zero_count"}).
			AddRow("success", 3))
	mock.ExpectExec("DELETE FROM units").
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO units").
		WithArgs(int64(42), "101", "1BR", false, int64(225000), "2026-03-14",
			(*string)(nil), (*string)(nil), (*string)(nil), (*int64)(nil), saveAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE buildings").
		WithArgs("success", 0, saveAt, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(int64(42), saveAt, "success", 1, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	status, err := store.SaveResult(context.Background(), 42, scrape.Result{
		Succeeded: true,
		Units: []scrape.Unit{{
			BuildingID: 42, UnitNumber: "101", BedType: "1BR",
			RentCents: 225000, AvailabilityDate: "2026-03-14", ScrapedAt: saveAt,
		}},
		At: saveAt,
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusSuccess, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_FailureLeavesUnitsUntouched(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_scrape_status, consecutive_zero_count").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"last_scrape_status", "consecutive_zero_count"}).
			AddRow("success", 2))
	// No DELETE FROM units and no INSERT INTO units on the failure path.
	mock.ExpectExec("UPDATE buildings").
		WithArgs("failed", 2, saveAt, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(int64(7), saveAt, "failed", 0, "fetch https://x.com: HTTP 502").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	status, err := store.SaveResult(context.Background(), 7, scrape.Result{
		Succeeded: false,
		Err:       "fetch https://x.com: HTTP 502",
		At:        saveAt,
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusFailed, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_FifthZeroFlipsToNeedsAttention(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_scrape_status, consecutive_zero_count").
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"last_scrape_status", "consecutive_zero_count"}).
			AddRow("success", 4))
	mock.ExpectExec("DELETE FROM units").
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE buildings").
		WithArgs("needs_attention", 5, saveAt, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(int64(9), saveAt, "success", 0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	status, err := store.SaveResult(context.Background(), 9, scrape.Result{
		Succeeded: true,
		At:        saveAt,
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusNeedsAttention, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_MissingBuilding(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT last_scrape_status, consecutive_zero_count").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.SaveResult(context.Background(), 404, scrape.Result{Succeeded: true, At: saveAt})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRoster(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("INSERT INTO buildings").
		WithArgs("New Building", "https://new.example.com", "Loop", "Acme Mgmt", "rentcafe", "new", "tok").
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO buildings").
		WithArgs("Existing", "https://old.example.com", "", "", "", "", "").
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectExec("DELETE FROM buildings").
		WithArgs([]string{"https://new.example.com", "https://old.example.com"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	stats, err := store.SyncRoster(context.Background(), []scrape.RosterEntry{
		{
			Name: "New Building", URL: "https://new.example.com", Neighborhood: "Loop",
			ManagementCompany: "Acme Mgmt", Platform: scrape.PlatformRentCafe,
			PropertyCode: "new", APIToken: "tok",
		},
		{Name: "Existing", URL: "https://old.example.com"},
		{Name: "No URL, skipped"},
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.RosterSyncStats{Added: 1, Updated: 1, Deleted: 3}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBuilding_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetBuilding(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneRuns(t *testing.T) {
	mock, store := newMockStore(t)

	cutoff := saveAt.AddDate(0, 0, -30)
	mock.ExpectExec("DELETE FROM scrape_runs").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 118))

	n, err := store.PruneRuns(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(118), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPlatform_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE buildings SET platform").
		WithArgs("funnel", int64(12)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetPlatform(context.Background(), 12, scrape.PlatformFunnel)
	assert.ErrorIs(t, err, ErrNotFound)
}
