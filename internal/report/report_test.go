package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/ingest"
)

func analysisFixture(t *testing.T, rows [][]string, entity string) *engine.Analysis {
	t.Helper()
	a, err := engine.DefaultPipeline().AnalyzeRaw(context.Background(), ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows:    rows,
	}, ingest.DefaultOptions(), entity)
	require.NoError(t, err)
	return a
}

func shortAnalysis(t *testing.T) *engine.Analysis {
	return analysisFixture(t, [][]string{
		{"2024-01-01", "App", "100"},
		{"2024-01-02", "App", "100"},
		{"2024-01-03", "App", "300"},
		{"2024-01-01", "Other", "0"},
	}, "App")
}

func longAnalysis(t *testing.T) *engine.Analysis {
	var rows [][]string
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{start.AddDate(0, 0, i).Format(time.DateOnly), "App", "100"})
	}
	return analysisFixture(t, rows, "App")
}

func TestRankingTable(t *testing.T) {
	tbl := RankingTable(shortAnalysis(t).Ranking)
	assert.Equal(t, TableCostSummary, tbl.Name)
	assert.Equal(t, []string{"Entity", "TotalCost", "MinCost", "MaxCost", "MeanCost", "CostShare(%)", "Trend"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"App", "500.00", "100.00", "300.00", "166.67", "100.00", "rising"}, tbl.Rows[0])
	assert.Equal(t, []string{"Other", "0.00", "0.00", "0.00", "0.00", "0.00", "falling"}, tbl.Rows[1])
}

func TestRankingTableUndefinedShare(t *testing.T) {
	a := analysisFixture(t, [][]string{{"2024-01-01", "Zero", "0"}}, "Zero")
	tbl := RankingTable(a.Ranking)
	assert.Equal(t, "n/a", tbl.Rows[0][5])
}

func TestDetailAndEfficiencyTables(t *testing.T) {
	a := shortAnalysis(t)

	detail := DetailTable(a)
	assert.Equal(t, TableSelectedEntity, detail.Name)
	require.Len(t, detail.Rows, 3)
	assert.Equal(t, "2024-01-03", detail.Rows[2][0])
	assert.Equal(t, "300.00", detail.Rows[2][1])
	assert.Equal(t, "false", detail.Rows[2][2])

	eff := EfficiencyTable(a)
	assert.Equal(t, []string{"App", "166.67", "166.67", "100.00", "0.00", "0", "stable"}, eff.Rows[0])
}

func TestEfficiencyTableNoData(t *testing.T) {
	a := analysisFixture(t, [][]string{{"2024-01-01", "App", "1"}}, "Ghost")
	eff := EfficiencyTable(a)
	assert.Equal(t, []string{"Ghost", "n/a", "n/a", "n/a", "n/a", "0", "no_data"}, eff.Rows[0])
	assert.Empty(t, DetailTable(a).Rows)
}

func TestFromAnalysis(t *testing.T) {
	short := FromAnalysis(shortAnalysis(t), "ops")
	assert.NotEmpty(t, short.ID)
	assert.Equal(t, "ops", short.Principal)
	assert.Len(t, short.Tables, 3, "fallback forecast has no forecast table")

	long := FromAnalysis(longAnalysis(t), "")
	require.Len(t, long.Tables, 4)
	fc := long.Tables[3]
	assert.Equal(t, TableForecast, fc.Name)
	assert.Len(t, fc.Rows, 10+engine.DefaultHorizonDays)
	assert.Equal(t, "true", fc.Rows[len(fc.Rows)-1][2])
}

func TestWriteValidates(t *testing.T) {
	var buf bytes.Buffer
	err := Write(context.Background(), JSONSink{W: &buf}, New("empty", ""))
	assert.ErrorIs(t, err, ErrEmptyReport)

	r := New("bad", "")
	r.Tables = []Table{{Name: "x", Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}}
	assert.Error(t, Write(context.Background(), JSONSink{W: &buf}, r))
	assert.Zero(t, buf.Len())
}

func TestCSVSink(t *testing.T) {
	r := FromAnalysis(shortAnalysis(t), "")

	t.Run("Directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		require.NoError(t, Write(context.Background(), CSVSink{Dir: dir}, r))

		f, err := os.Open(filepath.Join(dir, "cost_summary.csv"))
		require.NoError(t, err)
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "Entity", records[0][0])
		assert.Equal(t, "App", records[1][0])

		for _, name := range []string{"efficiency.csv", "selected_entity.csv"} {
			assert.FileExists(t, filepath.Join(dir, name))
		}
	})

	t.Run("SingleTableWriter", func(t *testing.T) {
		var buf bytes.Buffer
		single := New("one", "")
		single.Tables = []Table{r.Tables[0]}
		require.NoError(t, Write(context.Background(), CSVSink{W: &buf}, single))
		assert.Contains(t, buf.String(), "Entity,TotalCost")

		assert.Error(t, Write(context.Background(), CSVSink{W: &buf}, r), "writer takes a single table")
	})
}

func TestXLSXSink(t *testing.T) {
	r := FromAnalysis(longAnalysis(t), "")
	r.Tables = append(r.Tables, Table{Name: "A very long table name that Excel would reject", Columns: []string{"x"}})

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Write(context.Background(), XLSXSink{Path: path}, r))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 5)
	summary, ok := f.Sheet[TableCostSummary]
	require.True(t, ok)
	assert.Equal(t, "Entity", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "App", summary.Rows[1].Cells[0].String())
	_, ok = f.Sheet["A very long table name that Exc"]
	assert.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), XLSXSink{W: &buf}, r))
	_, err = xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	r := FromAnalysis(shortAnalysis(t), "ops")
	require.NoError(t, Write(context.Background(), JSONSink{W: &buf}, r))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.ID, decoded.ID)
	assert.Equal(t, r.Tables, decoded.Tables)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "cost_summary", Slug("Cost Summary"))
	assert.Equal(t, "costshare", Slug("CostShare(%)"))
}
