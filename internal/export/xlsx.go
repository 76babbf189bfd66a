// Package export renders task and job lists as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gigboard/internal/client"
	"gigboard/internal/workflow"

	"github.com/xuri/excelize/v2"
)

const (
	SheetTasks = "Accepted Tasks"
	SheetJobs  = "Posted Jobs"
)

// AcceptedTasks writes one row per task. Tasks whose job could not be
// loaded keep their acceptance columns and leave the job columns empty.
func AcceptedTasks(tasks []workflow.AcceptedTask) ([]byte, error) {
	headers := []string{"Accepted At", "Job Title", "Category", "Posted By", "Budget", "Acceptance ID", "Job ID"}
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		row := []any{formatDate(t.AcceptedAt), "", "", "", "", t.AcceptanceID, t.JobID}
		if t.Job != nil {
			row[1] = t.Job.Title
			row[2] = t.Job.Category
			row[3] = t.Job.PostedBy
			row[4] = budget(t.Job)
		}
		rows = append(rows, row)
	}
	return write(SheetTasks, headers, rows, []float64{20, 36, 20, 22, 12, 38, 38})
}

func PostedJobs(jobs []client.Job) ([]byte, error) {
	headers := []string{"Posted At", "Title", "Category", "Budget", "Tags", "Cover Image", "Job ID"}
	rows := make([][]any, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []any{
			formatDate(j.PostedDate), j.Title, j.Category, budget(&j), joinTags(j.Tags), j.CoverImage, j.ID,
		})
	}
	return write(SheetJobs, headers, rows, []float64{20, 36, 20, 12, 28, 48, 38})
}

func write(sheet string, headers []string, rows [][]any, widths []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func budget(j *client.Job) string {
	if j.Budget == nil {
		return ""
	}
	return j.Budget.StringFixed(2)
}

func joinTags(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return strings.Join(parts, " ")
}
