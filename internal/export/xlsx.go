// Package export keeps presentation copies of the scored jobs in sync:
// a spreadsheet a person works through, or a Redis hash other services read.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

// SheetName is the worksheet the jobs live on.
const SheetName = "Jobs"

// Columns is the workbook header. The last two belong to the user and are
// only written when a row is created.
var Columns = []string{
	"Job ID", "Date Collected", "Last Seen", "Company", "Title", "Location", "Remote", "Link",
	"Source(s)", "Posted Date", "Fit Score", "Fit Grade", "Fit Notes", "Missing Must-have",
	"Status", "Notes",
}

const (
	linkColumn = 8
	colWidth   = 18
)

// XLSX syncs records into a workbook on disk.
type XLSX struct {
	log *logger.Logger
}

// NewXLSX returns the workbook exporter.
func NewXLSX() *XLSX {
	return &XLSX{log: logger.Named("export")}
}

// Sync creates or updates the workbook at path. Rows are matched on Job ID:
// an existing row gets its computed columns rewritten and keeps Status and
// Notes, a new row is appended with Status "New".
func (x *XLSX) Sync(ctx context.Context, path string, records []model.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return errors.New("xlsx export: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("xlsx export mkdir: %w", err)
	}

	f, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("xlsx export read rows: %w", err)
	}
	existing := make(map[string]int, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 || row[0] == "" {
			continue
		}
		existing[row[0]] = i + 1
	}
	next := max(len(rows), 1) + 1

	if err := writeHeader(f); err != nil {
		return err
	}
	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0563C1", Underline: "single"},
	})
	if err != nil {
		return fmt.Errorf("xlsx export link style: %w", err)
	}

	updated, added := 0, 0
	for _, rec := range records {
		values := rowValues(rec)
		row, ok := existing[rec.JobID]
		if ok {
			updated++
		} else {
			row = next
			next++
			existing[rec.JobID] = row
			values = append(values, model.DefaultUserStatus, "")
			added++
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("xlsx export row %d: %w", row, err)
		}
		link, _ := excelize.CoordinatesToCellName(linkColumn, row)
		if err := f.SetCellHyperLink(SheetName, link, rec.JobURL, "External"); err != nil {
			return fmt.Errorf("xlsx export link %s: %w", link, err)
		}
		if err := f.SetCellStyle(SheetName, link, link, linkStyle); err != nil {
			return fmt.Errorf("xlsx export link style %s: %w", link, err)
		}
	}

	if err := layout(f, next-1); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx export save: %w", err)
	}
	x.log.Info().Str("path", path).Int("updated", updated).Int("added", added).Msg("workbook synced")
	return nil
}

func openWorkbook(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("xlsx export new sheet: %w", err)
		}
		return f, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx export open %s: %w", path, err)
	}
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx export sheet index: %w", err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(SheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("xlsx export new sheet: %w", err)
		}
	}
	return f, nil
}

func writeHeader(f *excelize.File) error {
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx export header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx export header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("xlsx export header style: %w", err)
	}
	return nil
}

// layout freezes the header row, filters over the data range and sets the
// column widths.
func layout(f *excelize.File, lastRow int) error {
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("xlsx export freeze: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.AutoFilter(SheetName, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("xlsx export autofilter: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, colWidth); err != nil {
		return fmt.Errorf("xlsx export widths: %w", err)
	}
	return nil
}

// rowValues are the first 14 columns, everything the pipeline computes.
func rowValues(r model.JobRecord) []any {
	return []any{
		r.JobID,
		r.CollectedAt.UTC().Format(time.RFC3339),
		r.LastSeen.UTC().Format(time.RFC3339),
		r.Company,
		r.Title,
		r.LocationText,
		r.RemoteFlag,
		r.JobURL,
		r.SourceName,
		r.PostedDate,
		r.FitScore,
		r.FitGrade,
		r.FitNotes,
		strings.Join(r.MissingMustHave, ", "),
	}
}
