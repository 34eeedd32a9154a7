// Package report renders usage statistics into an xlsx workbook.
package report

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
	"github.com/xuri/excelize/v2"
)

const (
	SheetItems         = "Items"
	SheetCommandUsage  = "Command Usage"
	SheetDailyActivity = "Daily Activity"
	SheetSummary       = "Summary"

	filePrefix = "statistics_report_"
	fileSuffix = ".xlsx"

	timestampLayout = "2006-01-02 15:04:05"

	// DefaultWindow bounds the Daily Activity sheet.
	DefaultWindow = 30 * 24 * time.Hour

	// DefaultMaxAge is how long generated reports are kept on disk.
	DefaultMaxAge = 30 * 24 * time.Hour
)

// Config configures a Generator.
type Config struct {
	// Dir is where reports are written. Created on demand.
	Dir string

	// Window is the Daily Activity look-back.
	// Default: 30 days
	Window time.Duration

	// MaxAge is the age after which report files are pruned.
	// Default: 30 days
	MaxAge time.Duration
}

// Generator renders a report snapshot into a workbook.
type Generator struct {
	reports store.ReportStore
	clock   clock.Clock
	dir     string
	window  time.Duration
	maxAge  time.Duration
}

// NewGenerator creates a report generator.
func NewGenerator(reports store.ReportStore, clk clock.Clock, cfg Config) *Generator {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Generator{
		reports: reports,
		clock:   clk,
		dir:     cfg.Dir,
		window:  window,
		maxAge:  maxAge,
	}
}

// fileName returns a report name for a generation at t. The random suffix
// keeps concurrent generations within the same second apart.
func fileName(t time.Time) string {
	id := uuid.Must(uuid.NewV7())
	suffix := hex.EncodeToString(id[len(id)-4:])
	return filePrefix + t.UTC().Format("20060102_150405") + "_" + suffix + fileSuffix
}

// Generate writes a new workbook and returns its path. The file only
// appears under its final name once fully written.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	now := g.clock.Now().UTC()

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	snap, err := g.reports.Snapshot(ctx, now.Add(-g.window).Truncate(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to read report data: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close workbook")
		}
	}()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}

	if err := f.SetSheetName("Sheet1", SheetItems); err != nil {
		return "", fmt.Errorf("failed to rename default sheet: %w", err)
	}

	if err := writeItems(w, snap.Items); err != nil {
		return "", err
	}
	if err := writeCommandUsage(w, snap.CommandUsage); err != nil {
		return "", err
	}
	if err := writeDailyActivity(w, snap.DailyActivity); err != nil {
		return "", err
	}
	if err := writeSummary(w, snap, now); err != nil {
		return "", err
	}

	path := filepath.Join(g.dir, fileName(now))
	if err := save(f, path); err != nil {
		return "", err
	}

	log.Info().
		Str("path", path).
		Int("items", len(snap.Items)).
		Int64("commands", snap.TotalCommands()).
		Msg("Generated report")

	if _, err := g.Prune(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to prune old reports")
	}

	return path, nil
}

// save writes the workbook to a hidden temp file in the target directory
// and renames it into place.
func save(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeItems(w *sheetWriter, items []*models.Item) error {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.ItemID,
			item.Name,
			item.Count,
			item.CreatedAt.UTC().Format(timestampLayout),
			item.UpdatedAt.UTC().Format(timestampLayout),
		})
	}

	return w.write(SheetItems, []string{"Item ID", "Name", "Count", "Created At", "Updated At"}, rows)
}

func writeCommandUsage(w *sheetWriter, usage []*models.CommandUsage) error {
	rows := make([][]any, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []any{
			u.Command,
			u.UsageCount,
			u.LastUsed.UTC().Format(timestampLayout),
			u.SuccessCount,
			u.ErrorCount,
		})
	}

	return w.write(SheetCommandUsage, []string{"Command", "Usage Count", "Last Used", "Success Count", "Error Count"}, rows)
}

func writeDailyActivity(w *sheetWriter, days []*models.DailyActivity) error {
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{d.Date.Format(time.DateOnly), d.CommandsExecuted, d.UniqueUsers})
	}

	return w.write(SheetDailyActivity, []string{"Date", "Commands Executed", "Unique Users"}, rows)
}

func writeSummary(w *sheetWriter, snap *models.ReportSnapshot, now time.Time) error {
	rows := [][]any{
		{"Total Items", len(snap.Items)},
		{"Total Commands Executed", snap.TotalCommands()},
		{"Unique Users", snap.UniqueUsers},
		{"Report Generated", now.Format(timestampLayout)},
	}

	return w.write(SheetSummary, []string{"Metric", "Value"}, rows)
}

// Prune removes reports older than the max age. Failures on individual
// files are logged and skipped.
func (g *Generator) Prune(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read reports directory: %w", err)
	}

	cutoff := g.clock.Now().Add(-g.maxAge)

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to stat report")
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(g.dir, name)); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to remove old report")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("count", removed).Msg("Pruned old reports")
	}

	return removed, nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
}

func (w *sheetWriter) write(sheet string, columns []string, rows [][]any) error {
	if idx, err := w.f.GetSheetIndex(sheet); err != nil || idx == -1 {
		if _, err := w.f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	headerRow := make([]any, len(columns))
	for i, c := range columns {
		headerRow[i] = c
	}

	if err := w.f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}

	if err := w.f.SetCellStyle(sheet, "A1", lastCol+"1", w.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	if err := w.f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	return nil
}
