package flows

import (
	"context"
	"fmt"
	"time"

	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/internal/models"
	"kamadata-bot/internal/report"
	"kamadata-bot/internal/validate"
)

// codeStep is the access check shared by the administrative dialogues; it
// does not record a responsible operator.
func codeStep(prompt, code string) dialogue.Step {
	check := validate.AccessCode(code)
	return dialogue.Step{
		Name:   stepCode,
		Input:  chat.InputText,
		Prompt: chat.Prompt{Text: prompt},
		Retry:  "❌ Clave incorrecta. Intente de nuevo:",
		Apply: func(_ *dialogue.Session, in chat.Input) error {
			_, err := check(in.Text)
			return err
		},
	}
}

type WorkerImportFields struct {
	Workers []models.Worker
}

func (*WorkerImportFields) Kind() dialogue.Kind { return dialogue.KindWorkerImport }

func WorkerImport(dir WorkerDirectory, code string) *dialogue.Spec {
	return &dialogue.Spec{
		Kind:      dialogue.KindWorkerImport,
		NewFields: func() dialogue.Fields { return &WorkerImportFields{} },
		Steps: []dialogue.Step{
			codeStep("🔑 Ingrese la clave de acceso para gestión de trabajadores:", code),
			dialogue.DocumentStep("file",
				"📄 Adjunte el archivo Excel (.xlsx) o CSV con la lista de trabajadores.\n"+
					"Debe tener una columna 'ID' (numérica) y una columna 'Nombre'.",
				"❌ Envíe un archivo .xlsx o .csv con las columnas 'ID' y 'Nombre' y al menos una fila válida.",
				func(doc *chat.Document) ([]models.Worker, error) {
					if doc == nil {
						return nil, validate.ErrInvalidFormat
					}
					return report.ParseWorkers(doc.Name, doc.Data)
				},
				func(f *WorkerImportFields, w []models.Worker) { f.Workers = w }),
		},
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			f := s.Fields.(*WorkerImportFields)
			n, err := dir.UpsertWorkers(ctx, f.Workers)
			if err != nil {
				return chat.Prompt{}, err
			}
			return chat.Prompt{Text: fmt.Sprintf("✅ Carga de trabajadores realizada. Se insertaron o actualizaron %d registros.", n)}, nil
		},
	}
}

const reportsPrompt = "🔑 Ingrese la clave de reportes:"

type SummaryFields struct {
	Date time.Time
}

func (*SummaryFields) Kind() dialogue.Kind { return dialogue.KindSummaryByDate }

func SummaryByDate(src ReportSource, code string) *dialogue.Spec {
	return &dialogue.Spec{
		Kind:      dialogue.KindSummaryByDate,
		NewFields: func() dialogue.Fields { return &SummaryFields{} },
		Steps: []dialogue.Step{
			codeStep(reportsPrompt, code),
			dialogue.TextStep(stepDate,
				"📅 Ingrese la fecha (DD/MM/AAAA):",
				"❌ Formato de fecha inválido. Use DD/MM/AAAA:",
				validate.ParseDate,
				func(f *SummaryFields, d time.Time) { f.Date = d }),
		},
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			f := s.Fields.(*SummaryFields)
			rows, err := src.RecordsByDate(ctx, f.Date)
			if err != nil {
				return chat.Prompt{}, err
			}
			if len(rows) == 0 {
				return chat.Prompt{Text: "No hay registros para esa fecha."}, nil
			}
			day := f.Date.Format("2006-01-02")
			return render("Resumen del "+f.Date.Format(displayDate), "resumen_"+day, rows)
		},
	}
}

type PeriodFields struct {
	Range validate.DateRange
}

func (*PeriodFields) Kind() dialogue.Kind { return dialogue.KindPeriodReport }

func PeriodReport(src ReportSource, code string) *dialogue.Spec {
	return &dialogue.Spec{
		Kind:      dialogue.KindPeriodReport,
		NewFields: func() dialogue.Fields { return &PeriodFields{} },
		Steps: []dialogue.Step{
			codeStep(reportsPrompt, code),
			dialogue.TextStep("range",
				"📅 Ingrese fecha de inicio y fin (DD/MM/AAAA - DD/MM/AAAA):",
				"❌ Formato inválido. Use DD/MM/AAAA - DD/MM/AAAA con la fecha de inicio primero:",
				validate.ParseDateRange,
				func(f *PeriodFields, r validate.DateRange) { f.Range = r }),
		},
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			r := s.Fields.(*PeriodFields).Range
			rows, err := src.RecordsByRange(ctx, r.Start, r.End)
			if err != nil {
				return chat.Prompt{}, err
			}
			if len(rows) == 0 {
				return chat.Prompt{Text: "No hay registros en ese periodo."}, nil
			}
			title := fmt.Sprintf("Reporte %s - %s", r.Start.Format(displayDate), r.End.Format(displayDate))
			base := fmt.Sprintf("reporte_%s_%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
			return render(title, base, rows)
		},
	}
}

func render(title, baseName string, rows []models.ReportRow) (chat.Prompt, error) {
	sheet, err := report.XLSX(rows)
	if err != nil {
		return chat.Prompt{}, fmt.Errorf("render spreadsheet: %w", err)
	}
	table, err := report.PDF(title, rows)
	if err != nil {
		return chat.Prompt{}, fmt.Errorf("render table: %w", err)
	}
	return chat.Prompt{
		Text: fmt.Sprintf("📊 %s: %d registros.", title, len(rows)),
		Attachments: []chat.Attachment{
			{Name: baseName + ".xlsx", Data: sheet},
			{Name: baseName + ".pdf", Data: table},
		},
	}, nil
}
