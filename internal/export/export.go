package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"

	"scraper-console/internal/jobclient"
	"scraper-console/internal/model"
	"scraper-console/internal/runstore"
)

const artifactExt = ".xlsx"

// Exporter is the part of the job client the coordinator needs.
type Exporter interface {
	Export(ctx context.Context, params model.JobParameters) (jobclient.ExportResult, error)
}

// Summary describes the first sheet of an exported workbook.
type Summary struct {
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
}

type Artifact struct {
	Name        string
	Data        []byte
	ContentType string
	RequestID   string
	Params      model.JobParameters
	// Summary is nil when the workbook could not be read.
	Summary *Summary
}

type Coordinator struct {
	client Exporter
	now    func() time.Time
	logger arbor.ILogger
}

func NewCoordinator(client Exporter, now func() time.Time, logger arbor.ILogger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Coordinator{client: client, now: now, logger: logger}
}

// ArtifactName is "{category}-{region}-{YYYY-MM-DD}.xlsx" with the UTC date.
func ArtifactName(params model.JobParameters, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s%s",
		safeNamePart(params.Category),
		safeNamePart(params.Region),
		now.UTC().Format("2006-01-02"),
		artifactExt,
	)
}

func safeNamePart(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Export asks the backend for the artifact of params. Inspection problems
// are logged and leave Summary nil.
func (c *Coordinator) Export(ctx context.Context, params model.JobParameters) (Artifact, error) {
	if c.client == nil {
		return Artifact{}, errors.New("export client is not configured")
	}
	res, err := c.client.Export(ctx, params)
	if err != nil {
		return Artifact{RequestID: res.RequestID}, err
	}

	art := Artifact{
		Name:        ArtifactName(params, c.now()),
		Data:        res.Data,
		ContentType: res.ContentType,
		RequestID:   res.RequestID,
		Params:      params,
	}
	summary, err := Inspect(res.Data)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", res.RequestID).Msg("exported workbook could not be inspected")
	} else {
		art.Summary = &summary
		c.logger.Info().Str("sheet", summary.Sheet).Int("rows", summary.Rows).Int("bytes", len(res.Data)).Msg("export received")
	}
	return art, nil
}

// Inspect reads the first sheet and counts data rows below the header.
func Inspect(data []byte) (Summary, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Summary{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Summary{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Summary{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	count := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if rowHasValue(row) {
			count++
		}
	}
	return Summary{Sheet: sheets[0], Rows: count}, nil
}

func rowHasValue(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}

// Save writes the artifact into dir and returns the final path. An existing
// file of the same name is kept and the new one gets a " (n)" suffix.
func Save(dir string, a Artifact, savedAt time.Time) (string, error) {
	if len(a.Data) == 0 {
		return "", errors.New("artifact is empty")
	}
	rec := runstore.ExportRecord{
		SavedAt:     savedAt.UTC().Format(time.RFC3339),
		Category:    a.Params.Category,
		Region:      a.Params.Region,
		Country:     a.Params.Country,
		RequestID:   a.RequestID,
		ContentType: a.ContentType,
	}
	if a.Summary != nil {
		rec.Rows = a.Summary.Rows
		rec.Sheet = a.Summary.Sheet
	}
	path, err := runstore.SaveArtifact(dir, a.Name, a.Data, rec)
	if err != nil {
		return path, fmt.Errorf("save %s: %w", a.Name, err)
	}
	return path, nil
}

// Describe is the operator-facing line for a saved artifact.
func Describe(a Artifact, path string) string {
	if a.Summary == nil {
		return fmt.Sprintf("Excel exported to %s", path)
	}
	return fmt.Sprintf("Excel exported to %s (%d rows)", path, a.Summary.Rows)
}
