// Package flows declares the concrete dialogues the bot runs: one per
// production area plus the worker import and the two reports.
package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kamadata-bot/internal/dialogue"
	"kamadata-bot/internal/models"
)

// Recorder appends production records. A batch is written atomically.
type Recorder interface {
	InsertProductionRecords(ctx context.Context, records []models.ProductionRecord) error
}

// WorkerDirectory upserts workers keyed by ID and returns how many were written.
type WorkerDirectory interface {
	UpsertWorkers(ctx context.Context, workers []models.Worker) (int, error)
}

// ReportSource reads production records joined with worker names.
type ReportSource interface {
	RecordsByDate(ctx context.Context, date time.Time) ([]models.ReportRow, error)
	RecordsByRange(ctx context.Context, start, end time.Time) ([]models.ReportRow, error)
}

// AccessCodes holds the fixed code of every area.
type AccessCodes struct {
	Sardine string
	Table   string
	Line    string
	Packing string
	Workers string
	Reports string
}

type Deps struct {
	Records Recorder
	Workers WorkerDirectory
	Reports ReportSource
	Codes   AccessCodes
}

// All returns every dialogue the bot serves.
func All(d Deps) []*dialogue.Spec {
	return []*dialogue.Spec{
		Sardine(d.Records, d.Codes.Sardine),
		Table(d.Records, d.Codes.Table),
		Line(d.Records, d.Codes.Line),
		Packing(d.Records, d.Codes.Packing),
		WorkerImport(d.Workers, d.Codes.Workers),
		SummaryByDate(d.Reports, d.Codes.Reports),
		PeriodReport(d.Reports, d.Codes.Reports),
	}
}

const displayDate = "02/01/2006"

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func savedText(n int) string {
	if n == 1 {
		return "✅ Registro guardado."
	}
	return fmt.Sprintf("✅ Registro guardado para %d trabajadores.", n)
}
