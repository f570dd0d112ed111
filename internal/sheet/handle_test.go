package sheet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"sheetsync/internal/domain"
)

const testSpreadsheetID = "ss-test"

// fakeBackend is an in-memory Sheets API good for the handful of RPCs the
// handle issues: spreadsheet get, batchUpdate, and values get/update/clear.
type fakeBackend struct {
	mu sync.Mutex

	props       []*sheets.SheetProperties
	values      map[string][][]interface{}
	batchReqs   []*sheets.BatchUpdateSpreadsheetRequest
	updates     map[string][][]interface{}
	inputOption string
	clears      []string
	failAll     bool
}

func newFakeSheets(t *testing.T, existing ...*sheets.SheetProperties) (*sheets.Service, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{
		props:   existing,
		values:  map[string][][]interface{}{},
		updates: map[string][][]interface{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/"+testSpreadsheetID, fb.getSpreadsheet)
	mux.HandleFunc("POST /v4/spreadsheets/"+testSpreadsheetID+":batchUpdate", fb.batchUpdate)
	mux.HandleFunc("/v4/spreadsheets/"+testSpreadsheetID+"/values/", fb.valuesCall)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication())
	require.NoError(t, err)
	return svc, fb
}

func (f *fakeBackend) fail(w http.ResponseWriter) bool {
	if !f.failAll {
		return false
	}
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend exploded"}}`))
	return true
}

func (f *fakeBackend) getSpreadsheet(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail(w) {
		return
	}
	ss := &sheets.Spreadsheet{}
	for _, p := range f.props {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{Properties: p})
	}
	_ = json.NewEncoder(w).Encode(ss)
}

func (f *fakeBackend) batchUpdate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail(w) {
		return
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.batchReqs = append(f.batchReqs, req)

	resp := &sheets.BatchUpdateSpreadsheetResponse{}
	for _, rq := range req.Requests {
		if rq.AddSheet != nil {
			created := &sheets.SheetProperties{
				SheetId:        991,
				Title:          rq.AddSheet.Properties.Title,
				GridProperties: rq.AddSheet.Properties.GridProperties,
			}
			f.props = append(f.props, created)
			resp.Replies = append(resp.Replies, &sheets.Response{
				AddSheet: &sheets.AddSheetResponse{Properties: created},
			})
		} else {
			resp.Replies = append(resp.Replies, &sheets.Response{})
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// valuesCall dispatches values.get, values.update and values.clear, which
// share the /values/{range} path shape.
func (f *fakeBackend) valuesCall(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail(w) {
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/"+testSpreadsheetID+"/values/")

	switch {
	case strings.HasSuffix(rng, ":clear"):
		f.clears = append(f.clears, strings.TrimSuffix(rng, ":clear"))
		_ = json.NewEncoder(w).Encode(&sheets.ClearValuesResponse{})
	case r.Method == http.MethodPut:
		vr := &sheets.ValueRange{}
		if err := json.NewDecoder(r.Body).Decode(vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates[rng] = vr.Values
		f.inputOption = r.URL.Query().Get("valueInputOption")
		_ = json.NewEncoder(w).Encode(&sheets.UpdateValuesResponse{})
	default:
		_ = json.NewEncoder(w).Encode(&sheets.ValueRange{Values: f.values[rng]})
	}
}

func TestOpenFindsExistingWorksheet(t *testing.T) {
	svc, fb := newFakeSheets(t, &sheets.SheetProperties{
		SheetId: 11,
		Title:   "Raw_SB_H2_2025_US",
		GridProperties: &sheets.GridProperties{
			RowCount:    500,
			ColumnCount: 21,
		},
	})

	h, outcome, err := Open(context.Background(), svc, testSpreadsheetID, "Raw_SB_H2_2025_US", Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, outcome)
	assert.Equal(t, "Raw_SB_H2_2025_US", h.Title())
	assert.Equal(t, int64(11), h.SheetID())
	assert.Equal(t, int64(500), h.RowCount())
	assert.Empty(t, fb.batchReqs, "finding a worksheet must not mutate the spreadsheet")
}

func TestOpenCreatesMissingWorksheet(t *testing.T) {
	svc, fb := newFakeSheets(t)

	h, outcome, err := Open(context.Background(), svc, testSpreadsheetID, "Fresh", Options{
		Rows:   200,
		Cols:   3,
		Header: []string{"Product", "ASIN", "Date"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, int64(991), h.SheetID())
	assert.Equal(t, int64(200), h.RowCount())

	require.Len(t, fb.batchReqs, 1)
	add := fb.batchReqs[0].Requests[0].AddSheet
	require.NotNil(t, add)
	assert.Equal(t, "Fresh", add.Properties.Title)
	assert.Equal(t, int64(200), add.Properties.GridProperties.RowCount)
	assert.Equal(t, int64(3), add.Properties.GridProperties.ColumnCount)

	header, ok := fb.updates["'Fresh'!A1:C1"]
	require.True(t, ok, "header row must be written to row 1, got %v", fb.updates)
	assert.Equal(t, [][]interface{}{{"Product", "ASIN", "Date"}}, header)
	assert.Equal(t, InputRaw, fb.inputOption)
}

func TestOpenAppliesGridDefaults(t *testing.T) {
	svc, fb := newFakeSheets(t)

	_, outcome, err := Open(context.Background(), svc, testSpreadsheetID, "Sized", Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	require.Len(t, fb.batchReqs, 1)
	gp := fb.batchReqs[0].Requests[0].AddSheet.Properties.GridProperties
	assert.Equal(t, DefaultRows, gp.RowCount)
	assert.Equal(t, DefaultCols, gp.ColumnCount)
}

func TestEnsureRowsGrowsOnlyWhenNeeded(t *testing.T) {
	svc, fb := newFakeSheets(t, &sheets.SheetProperties{
		SheetId:        7,
		Title:          "Grid",
		GridProperties: &sheets.GridProperties{RowCount: 100, ColumnCount: 10},
	})
	h, _, err := Open(context.Background(), svc, testSpreadsheetID, "Grid", Options{})
	require.NoError(t, err)

	require.NoError(t, h.EnsureRows(context.Background(), 50))
	assert.Empty(t, fb.batchReqs, "capacity already sufficient")
	assert.Equal(t, int64(100), h.RowCount())

	require.NoError(t, h.EnsureRows(context.Background(), 150))
	require.Len(t, fb.batchReqs, 1)
	app := fb.batchReqs[0].Requests[0].AppendDimension
	require.NotNil(t, app)
	assert.Equal(t, int64(7), app.SheetId)
	assert.Equal(t, "ROWS", app.Dimension)
	assert.Equal(t, int64(50), app.Length)
	assert.Equal(t, int64(150), h.RowCount())
}

func TestCountDataRows(t *testing.T) {
	tests := []struct {
		name   string
		column [][]interface{}
		want   int64
	}{
		{"empty worksheet", nil, 0},
		{"header only", [][]interface{}{{"Date"}}, 0},
		{"rows after header", [][]interface{}{{"Date"}, {"10/15/2025"}, {"10/16/2025"}}, 2},
		{"blank cells skipped", [][]interface{}{{"Date"}, {"10/15/2025"}, {""}, {"  "}, {"10/16/2025"}}, 2},
		{"empty rows skipped", [][]interface{}{{"Date"}, {}, {"10/15/2025"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fb := newFakeSheets(t, &sheets.SheetProperties{SheetId: 1, Title: "Data"})
			fb.values["'Data'!A:A"] = tt.column

			h, _, err := Open(context.Background(), svc, testSpreadsheetID, "Data", Options{})
			require.NoError(t, err)

			n, err := h.CountDataRows(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestReadAllReturnsValues(t *testing.T) {
	svc, fb := newFakeSheets(t, &sheets.SheetProperties{SheetId: 1, Title: "Data"})
	fb.values["'Data'"] = [][]interface{}{{"Date", "Sales"}, {"10/15/2025", "12.5"}}

	h, _, err := Open(context.Background(), svc, testSpreadsheetID, "Data", Options{})
	require.NoError(t, err)

	rows, err := h.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"Date", "Sales"}, rows[0])
}

func TestWriteAndClearRange(t *testing.T) {
	svc, fb := newFakeSheets(t, &sheets.SheetProperties{SheetId: 1, Title: "Data"})
	h, _, err := Open(context.Background(), svc, testSpreadsheetID, "Data", Options{})
	require.NoError(t, err)

	rng := RangeRef("Data", 1, 2, 2, 3)
	values := [][]interface{}{{"a", "b"}, {"c", "d"}}
	require.NoError(t, h.WriteRange(context.Background(), rng, values, InputUserEntered))
	assert.Equal(t, values, fb.updates["'Data'!A2:B3"])
	assert.Equal(t, InputUserEntered, fb.inputOption)

	require.NoError(t, h.ClearRange(context.Background(), rng))
	assert.Equal(t, []string{"'Data'!A2:B3"}, fb.clears)
}

func TestRemoteFailuresWrapped(t *testing.T) {
	svc, fb := newFakeSheets(t)
	fb.failAll = true

	_, _, err := Open(context.Background(), svc, testSpreadsheetID, "Any", Options{})
	require.Error(t, err)

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, err.Error(), "load spreadsheet")
}
