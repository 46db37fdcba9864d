// Package roster provides building-list sources. The authoritative list is
// operator-managed and exported as CSV; batch runs read it at start and
// write the availability snapshot back next to it.
package roster

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// FileRoster reads the roster from a CSV export and writes the
// post-run availability snapshot alongside it.
type FileRoster struct {
	path   string
	outDir string
	logger *zap.Logger
}

// NewFileRoster builds a FileRoster. outDir defaults to the roster file's
// directory.
func NewFileRoster(path, outDir string, logger *zap.Logger) *FileRoster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	return &FileRoster{path: path, outDir: outDir, logger: logger}
}

// Fetch parses the roster CSV into entries. Rows with an empty url column
// are skipped with a warning.
func (r *FileRoster) Fetch(_ context.Context) ([]scrape.RosterEntry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", r.path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("roster %s is empty", r.path)
	}

	idx, err := columnIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", r.path, err)
	}

	entries := make([]scrape.RosterEntry, 0, len(records)-1)
	for i, row := range records[1:] {
		get := func(col string) string {
			j, ok := idx[col]
			if !ok || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		e := scrape.RosterEntry{
			Name:              get("name"),
			URL:               get("url"),
			Neighborhood:      get("neighborhood"),
			ManagementCompany: get("management_company"),
			Platform:          scrape.Platform(strings.ToLower(get("platform"))),
			PropertyCode:      get("property_code"),
			APIToken:          get("api_token"),
		}
		if e.URL == "" {
			r.logger.Warn("roster row has no url, skipping",
				zap.Int("row", i+2), zap.String("name", e.Name))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Push writes the availability snapshot as CSV into the output directory
// and logs the run summary.
func (r *FileRoster) Push(_ context.Context, summary scrape.Summary, rows []scrape.AvailabilityRow) error {
	out := filepath.Join(r.outDir, "availability.csv")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("write availability snapshot: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"building", "neighborhood", "unit", "bed_type", "rent", "available", "sqft",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		sqft := ""
		if row.Sqft != nil {
			sqft = strconv.FormatInt(*row.Sqft, 10)
		}
		rec := []string{
			row.BuildingName,
			row.Neighborhood,
			row.UnitNumber,
			row.BedType,
			formatRent(row.RentCents),
			row.AvailabilityDate,
			sqft,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write availability snapshot: %w", err)
	}

	r.logger.Info("batch summary",
		zap.Time("started_at", summary.StartedAt),
		zap.Time("finished_at", summary.FinishedAt),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("needs_attention", summary.Attention),
		zap.Int("units", summary.TotalUnits),
		zap.Int64("pruned_runs", summary.PrunedRuns),
		zap.String("snapshot", out),
	)
	return nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "url"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return idx, nil
}

func formatRent(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
