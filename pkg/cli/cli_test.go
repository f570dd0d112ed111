package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTestEnv points the CLI at a throwaway database and clears every
// other pipeline-related variable so host configuration cannot leak in.
func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SHEETSYNC_DB_PATH", filepath.Join(dir, "runs.sqlite"))
	t.Setenv("SHEETSYNC_CREDENTIALS_FILE", "")
	t.Setenv("SHEETSYNC_SPREADSHEET_ID", "")
	t.Setenv("SHEETSYNC_SPECS_DIR", "")
	t.Setenv("SHEETSYNC_WATCH_DIR", "")
	t.Setenv("SHEETSYNC_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeSalesCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sellerboard_15_10_2025.csv")
	content := "Product,ASIN,Date,Sales\nWidget,B01AAAAAAA,,12.5\nGadget,B01BBBBBBB,,8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunDryRunRecordsHistory(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	out, err := runCLI(t, "run", "sales", csv, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "SYNCED")
	assert.Contains(t, out, "Raw_SB_H2_2025_US")
	assert.Contains(t, out, "2 merged")

	hist, err := runCLI(t, "history", "--pipeline", "sales")
	require.NoError(t, err)
	assert.Contains(t, hist, "sales")
	assert.Contains(t, hist, "CLI")
	assert.Contains(t, hist, "SYNCED")
}

func TestRunJSONOutput(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	out, err := runCLI(t, "run", "sales", csv, "--dry-run", "-o", "json")
	require.NoError(t, err)

	var res struct {
		RunID       string `json:"run_id"`
		Status      string `json:"status"`
		RowsWritten int    `json:"rows_written"`
		RowsMerged  int    `json:"rows_merged"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "SYNCED", res.Status)
	assert.Equal(t, 2, res.RowsMerged)
	assert.Zero(t, res.RowsWritten)
}

func TestRunUnknownPipeline(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	_, err := runCLI(t, "run", "nope", csv, "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pipeline")
}

func TestRunLiveWithoutCredentialsFails(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	out, err := runCLI(t, "run", "sales", csv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
	assert.Contains(t, out, "FAILED")
}

func TestRunAllFilesRejected(t *testing.T) {
	dir := setTestEnv(t)
	bad := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("%PDF-1.4"), 0o644))

	out, err := runCLI(t, "run", "sales", bad, "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows extracted")
	assert.Contains(t, out, "NO_DATA")
	assert.Contains(t, out, "report.pdf")
}

func TestRunRejectsBadDeleteFrom(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	_, err := runCLI(t, "run", "sales", csv, "--dry-run", "--delete-from", "15/10/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestRunExportWritesMergedTable(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)
	outFile := filepath.Join(dir, "merged.csv")

	_, err := runCLI(t, "run", "sales", csv, "--dry-run", "--export", outFile)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ASIN")
	assert.Contains(t, string(data), "B01AAAAAAA")
}

func TestExportCommand(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)
	outFile := filepath.Join(dir, "out.xlsx")

	out, err := runCLI(t, "export", "sales", csv, "--out", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported merged table")

	info, err := os.Stat(outFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// An export is a local operation, it must not show up in history.
	hist, err := runCLI(t, "history", "--pipeline", "sales", "-o", "json")
	require.NoError(t, err)

	var runs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(hist), &runs))
	assert.Empty(t, runs)
}

func TestExportRequiresOut(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	_, err := runCLI(t, "export", "sales", csv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out")
}

func TestWipeRequiresFrom(t *testing.T) {
	setTestEnv(t)

	_, err := runCLI(t, "wipe", "sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from")
}

func TestWipeRejectsBadDate(t *testing.T) {
	setTestEnv(t)

	_, err := runCLI(t, "wipe", "sales", "--from", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestPipelinesTable(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "pipelines")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "sales")
	assert.Contains(t, out, "asin")
	assert.Contains(t, out, "APPEND")
	assert.Contains(t, out, "REPLACE")
}

func TestPipelinesJSON(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "pipelines", "-o", "json")
	require.NoError(t, err)

	var specs []struct {
		Name    string `json:"name"`
		Mode    string `json:"mode"`
		Columns int    `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	assert.Len(t, specs, 6)
}

func TestHistoryJSON(t *testing.T) {
	dir := setTestEnv(t)
	csv := writeSalesCSV(t, dir)

	_, err := runCLI(t, "run", "sales", csv, "--dry-run")
	require.NoError(t, err)

	out, err := runCLI(t, "history", "-o", "json")
	require.NoError(t, err)

	var runs []struct {
		Pipeline string `json:"pipeline"`
		Trigger  string `json:"trigger"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "sales", runs[0].Pipeline)
	assert.Equal(t, "CLI", runs[0].Trigger)
}

func TestBadOutputFormat(t *testing.T) {
	setTestEnv(t)

	_, err := runCLI(t, "pipelines", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sheetsync version dev")
}
