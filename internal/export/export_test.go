package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"scraper-console/internal/jobclient"
	"scraper-console/internal/model"
)

type stubExporter struct {
	result jobclient.ExportResult
	err    error
	got    model.JobParameters
}

func (s *stubExporter) Export(_ context.Context, params model.JobParameters) (jobclient.ExportResult, error) {
	s.got = params
	return s.result, s.err
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	const sheet = "Resultados"
	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("delete default sheet: %v", err)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func params() model.JobParameters {
	return model.JobParameters{Category: "minería", Region: "Lima", Country: "Perú", TargetCount: 100}
}

func TestArtifactName(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("PET", -5*3600))
	got := ArtifactName(params(), now)
	if got != "minería-Lima-2026-03-10.xlsx" {
		t.Fatalf("unexpected name %q", got)
	}

	odd := model.JobParameters{Category: "ferretería/pinturas", Region: "  "}
	got = ArtifactName(odd, now)
	if got != "ferretería_pinturas-_-2026-03-10.xlsx" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}

func TestCoordinatorExport_InspectsWorkbook(t *testing.T) {
	data := workbook(t, [][]any{
		{"Nombre", "Dirección", "Teléfono"},
		{"Minera Andina", "Av. Arequipa 123", "01 555 1234"},
		{"Cantera Sur", "Jr. Lampa 45", ""},
	})
	stub := &stubExporter{result: jobclient.ExportResult{Data: data, ContentType: "application/xlsx", RequestID: "req-1"}}
	now := func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	c := NewCoordinator(stub, now, nil)

	art, err := c.Export(context.Background(), params())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if stub.got.Category != "minería" {
		t.Fatalf("params not forwarded: %+v", stub.got)
	}
	if art.Name != "minería-Lima-2026-03-09.xlsx" {
		t.Fatalf("unexpected artifact name %q", art.Name)
	}
	if art.Summary == nil || art.Summary.Sheet != "Resultados" || art.Summary.Rows != 2 {
		t.Fatalf("unexpected summary %+v", art.Summary)
	}
}

func TestCoordinatorExport_UnreadableWorkbookIsNotFatal(t *testing.T) {
	stub := &stubExporter{result: jobclient.ExportResult{Data: []byte("not a zip")}}
	c := NewCoordinator(stub, nil, nil)

	art, err := c.Export(context.Background(), params())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if art.Summary != nil {
		t.Fatalf("expected no summary, got %+v", art.Summary)
	}
	if string(art.Data) != "not a zip" {
		t.Fatalf("data not passed through")
	}
}

func TestCoordinatorExport_PropagatesRejection(t *testing.T) {
	want := &jobclient.RejectedError{Command: jobclient.CommandExport, Status: 404, Detail: "sin resultados"}
	c := NewCoordinator(&stubExporter{err: want}, nil, nil)

	_, err := c.Export(context.Background(), params())
	var rejected *jobclient.RejectedError
	if !errors.As(err, &rejected) || rejected.Detail != "sin resultados" {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestSave_KeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	data := workbook(t, [][]any{{"Nombre"}, {"A"}})
	art := Artifact{Name: "minería-Lima-2026-03-09.xlsx", Data: data, Params: params(), Summary: &Summary{Sheet: "Resultados", Rows: 1}}
	savedAt := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	first, err := Save(dir, art, savedAt)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := Save(dir, art, savedAt)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first == second {
		t.Fatalf("second save overwrote first: %s", first)
	}
	if filepath.Base(second) != "minería-Lima-2026-03-09 (1).xlsx" {
		t.Fatalf("unexpected second name %s", second)
	}
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("first artifact missing: %v", err)
	}

	line := Describe(art, second)
	if !strings.Contains(line, "(1 rows)") || !strings.Contains(line, second) {
		t.Fatalf("unexpected description %q", line)
	}
}

func TestSave_RejectsEmptyArtifact(t *testing.T) {
	if _, err := Save(t.TempDir(), Artifact{Name: "x.xlsx"}, time.Now()); err == nil {
		t.Fatal("expected error for empty artifact")
	}
}
