package roster

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

const rosterCSV = `name,url,neighborhood,management_company,platform,property_code,api_token
The Dey,https://dey.example.com,Fulton Market,Magellan,rentcafe,dey,tok-1
Alta Roosevelt,https://alta.example.com,South Loop,,RealPage,,
No URL Row,,Loop,,,,
`

func writeRoster(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFileRoster_Fetch(t *testing.T) {
	r := NewFileRoster(writeRoster(t, rosterCSV), "", nil)
	entries, err := r.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, scrape.RosterEntry{
		Name: "The Dey", URL: "https://dey.example.com", Neighborhood: "Fulton Market",
		ManagementCompany: "Magellan", Platform: scrape.PlatformRentCafe,
		PropertyCode: "dey", APIToken: "tok-1",
	}, entries[0])

	// Platform column is lowercased.
	assert.Equal(t, scrape.PlatformRealPage, entries[1].Platform)
}

func TestFileRoster_ColumnsByName(t *testing.T) {
	// Reordered and extra columns are fine as long as name and url exist.
	r := NewFileRoster(writeRoster(t, "url,notes,name\nhttps://x.example.com,ignore,X\n"), "", nil)
	entries, err := r.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "X", entries[0].Name)
	assert.Equal(t, "https://x.example.com", entries[0].URL)
}

func TestFileRoster_MissingRequiredColumn(t *testing.T) {
	r := NewFileRoster(writeRoster(t, "name,neighborhood\nX,Loop\n"), "", nil)
	_, err := r.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "url"`)
}

func TestFileRoster_Push(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRoster(filepath.Join(dir, "roster.csv"), dir, nil)
	sqft := int64(720)

	err := r.Push(context.Background(), scrape.Summary{
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Total:      1, Succeeded: 1, TotalUnits: 1,
	}, []scrape.AvailabilityRow{{
		BuildingName: "The Dey", Neighborhood: "Fulton Market",
		UnitNumber: "1204", BedType: "1BR", RentCents: 265900,
		AvailabilityDate: "2026-05-01", Sqft: &sqft,
	}})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "availability.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"building", "neighborhood", "unit", "bed_type", "rent", "available", "sqft"}, records[0])
	assert.Equal(t, []string{"The Dey", "Fulton Market", "1204", "1BR", "2659.00", "2026-05-01", "720"}, records[1])
}
