package export

import (
	"bytes"
	"testing"
	"time"

	"gigboard/internal/client"
	"gigboard/internal/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func open(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestAcceptedTasksWorkbook(t *testing.T) {
	b := decimal.RequireFromString("99.5")
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	data, err := AcceptedTasks([]workflow.AcceptedTask{
		{AcceptanceID: "a1", JobID: "j1", AcceptedAt: at, Job: &client.Job{ID: "j1", Title: "Logo", Category: "Graphics Design", PostedBy: "Dana", Budget: &b}},
		{AcceptanceID: "a2", JobID: "j2", AcceptedAt: at},
	})
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{SheetTasks}, f.GetSheetList())

	rows, err := f.GetRows(SheetTasks)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Job Title", rows[0][1])
	assert.Equal(t, []string{"2026-05-04 09:30", "Logo", "Graphics Design", "Dana", "99.50", "a1", "j1"}, rows[1])
	assert.Equal(t, "a2", rows[2][5])
	assert.Empty(t, rows[2][1])
}

func TestPostedJobsWorkbook(t *testing.T) {
	data, err := PostedJobs([]client.Job{{ID: "j1", Title: "Logo", Category: "Graphics Design", Tags: []string{"logo", "branding"}}})
	require.NoError(t, err)

	f := open(t, data)
	title, err := f.GetCellValue(SheetJobs, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Logo", title)

	tags, err := f.GetCellValue(SheetJobs, "E2")
	require.NoError(t, err)
	assert.Equal(t, "#logo #branding", tags)
}

func TestEmptyWorkbookHasHeaderOnly(t *testing.T) {
	data, err := PostedJobs(nil)
	require.NoError(t, err)
	rows, err := open(t, data).GetRows(SheetJobs)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
