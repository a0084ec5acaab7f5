package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCSVWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer, err := NewCSVWriter(fs, "reports/20250704.csv")
	require.NoError(t, err)
	require.Error(t, writer.Validate(), "header only")

	r := sampleResult(1, models.OutcomeSkipped)
	r.RemoteSize = 2097152
	r.Reason = "already exists, size: 2,097,152 bytes"
	r.Duration = 1500 * time.Millisecond
	require.NoError(t, writer.Write([]*models.DownloadResult{r}))
	require.NoError(t, writer.Validate())
	require.NoError(t, writer.Close())

	f, err := fs.Open("reports/20250704.csv")
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])

	row := records[1]
	require.Equal(t, "20250704", row[0])
	require.Equal(t, "f001.fits", row[1])
	require.Equal(t, "skipped", row[2])
	require.Equal(t, "2097152", row[4])
	require.Equal(t, "1500", row[5])
	require.Equal(t, r.Reason, row[6])
	require.Equal(t, "2025-07-04T12:00:00Z", row[10])
}

func TestJSONWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer, err := NewJSONWriter(fs, "report.jsonl")
	require.NoError(t, err)

	failed := sampleResult(2, models.OutcomeFailed)
	failed.Error = "fetch http://example.test: http 404: Not Found"
	require.NoError(t, writer.Write([]*models.DownloadResult{sampleResult(1, models.OutcomeDownloaded), failed}))
	require.NoError(t, writer.Close())

	f, err := fs.Open("report.jsonl")
	require.NoError(t, err)
	defer f.Close()

	var decoded []models.DownloadResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r models.DownloadResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		decoded = append(decoded, r)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, decoded, 2)
	require.Equal(t, models.OutcomeFailed, decoded[1].Outcome)
	require.Equal(t, failed.Error, decoded[1].Error)
	require.Nil(t, decoded[1].Err)
}

func TestOpenReportDual(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := OpenReport(fs, "dual", "out/run.csv")
	require.NoError(t, err)
	require.IsType(t, &DualWriter{}, w)

	require.NoError(t, w.Write([]*models.DownloadResult{sampleResult(1, models.OutcomeDownloaded)}))
	require.NoError(t, w.Validate())
	require.NoError(t, w.Close())

	for _, name := range []string{"out/run.csv", "out/run.jsonl"} {
		ok, err := afero.Exists(fs, name)
		require.NoError(t, err)
		require.True(t, ok, name)
	}

	_, err = OpenReport(fs, "xml", "out/run.xml")
	require.Error(t, err)
}

func TestOpenReportReadOnly(t *testing.T) {
	_, err := OpenReport(afero.NewReadOnlyFs(afero.NewMemMapFs()), "csv", "reports/run.csv")
	require.Error(t, err)
}

func TestWriteDateList(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteDateList(fs, "lists/days.txt", []string{"20250702", "20250704"}))

	data, err := afero.ReadFile(fs, "lists/days.txt")
	require.NoError(t, err)
	require.Equal(t, "20250702\n20250704\n", string(data))
}

func TestFreeSpaceMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	free, err := FreeSpace(context.Background(), dir+"/not/yet/created")
	require.NoError(t, err)
	require.Greater(t, free, uint64(0))
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()
	got, err := existingAncestor(dir + "/a/b/c")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(got, strings.TrimSuffix(dir, "/")), got)
}
