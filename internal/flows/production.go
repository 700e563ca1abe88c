package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kamadata-bot/internal/chat"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/internal/models"
	"kamadata-bot/internal/validate"
)

// Production holds the fields every area collects before its own steps.
type Production struct {
	ResponsibleID int64
	Date          time.Time
	Company       models.Company
}

func (p *Production) production() *Production { return p }

type productionFields interface {
	dialogue.Fields
	production() *Production
}

const (
	stepCode     = "code"
	stepDate     = "date"
	stepCompany  = "company"
	stepSupplier = "supplier"
	stepCrates   = "crates"
	stepKg       = "kg"
	stepWorker   = "worker"
	stepWorkers  = "workers"
	stepType     = "type"
	stepBaskets  = "baskets"
	stepBoxes    = "boxes"
)

var productTypes = []string{"Tomate", "Aceite"}

// accessStep checks the area code and records the acting user as the
// responsible operator.
func accessStep[F productionFields](area, code string) dialogue.Step {
	check := validate.AccessCode(code)
	return dialogue.Step{
		Name:   stepCode,
		Input:  chat.InputText,
		Prompt: chat.Prompt{Text: fmt.Sprintf("🔑 Ingrese la clave de acceso para %s:", area)},
		Retry:  "❌ Clave incorrecta. Ingrese la clave nuevamente:",
		Apply: func(s *dialogue.Session, in chat.Input) error {
			f, ok := s.Fields.(F)
			if !ok {
				return fmt.Errorf("fields have type %T", s.Fields)
			}
			if _, err := check(in.Text); err != nil {
				return err
			}
			f.production().ResponsibleID = s.UserID
			return nil
		},
	}
}

func dateStep[F productionFields]() dialogue.Step {
	return dialogue.TextStep(stepDate,
		"📅 Ingrese la fecha (DD/MM/AAAA):",
		"❌ Formato de fecha inválido. Use DD/MM/AAAA:",
		validate.ParseDate,
		func(f F, d time.Time) { f.production().Date = d })
}

func companyStep[F productionFields](prompt string) dialogue.Step {
	options := make([]string, len(models.Companies))
	for i, c := range models.Companies {
		options[i] = string(c)
	}
	return dialogue.ChoiceStep(stepCompany, prompt,
		"❌ Seleccione una de las empresas:",
		options,
		func(f F, v string) { f.production().Company = models.Company(v) })
}

func workersStep[F dialogue.Fields](set func(F, []int64)) dialogue.Step {
	return dialogue.TextStep(stepWorkers,
		"👥 Ingrese los IDs de los trabajadores separados por coma (ej: 12, 34, 56):",
		"❌ IDs inválidos. Ingrese los IDs separados por coma (solo números enteros):",
		validate.IntList, set)
}

func countStep[F dialogue.Fields](name, unit string, set func(F, int64)) dialogue.Step {
	return dialogue.TextStep(name,
		fmt.Sprintf("Ingrese la cantidad de %s (solo números enteros positivos):", unit),
		fmt.Sprintf("❌ Cantidad inválida. Ingrese el número de %s (solo números enteros positivos):", unit),
		validate.PositiveInt, set)
}

func productTypeStep[F dialogue.Fields](set func(F, string)) dialogue.Step {
	return dialogue.ChoiceStep(stepType,
		"🥫 Seleccione el tipo de producción:",
		"❌ Seleccione uno de los tipos de producción:",
		productTypes, set)
}

func summary(title string, p *Production, lines ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confirme el registro de %s:\n", title)
	fmt.Fprintf(&b, "Fecha: %s\n", p.Date.Format(displayDate))
	fmt.Fprintf(&b, "Empresa: %s\n", p.Company)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "ID Responsable: %d", p.ResponsibleID)
	return b.String()
}

// fanOut builds one record per worker, identical except for WorkerID.
func fanOut(p *Production, area models.Area, typ string, qty float64, workers []int64) []models.ProductionRecord {
	records := make([]models.ProductionRecord, 0, len(workers))
	for _, w := range workers {
		records = append(records, models.ProductionRecord{
			Date:          p.Date,
			Area:          area,
			Company:       p.Company,
			Type:          typ,
			Quantity:      qty,
			WorkerID:      w,
			ResponsibleID: p.ResponsibleID,
		})
	}
	return records
}

func save(ctx context.Context, rec Recorder, records []models.ProductionRecord) (chat.Prompt, error) {
	if err := rec.InsertProductionRecords(ctx, records); err != nil {
		return chat.Prompt{}, err
	}
	return chat.Prompt{Text: savedText(len(records))}, nil
}

func editNotice(area string) string {
	return fmt.Sprintf("✏️ Editando la carga de %s.", area)
}

// SardineFields is collected by the sardine reception dialogue.
type SardineFields struct {
	Production
	Supplier string
	Crates   int64
	Kg       float64
	WorkerID int64
}

func (*SardineFields) Kind() dialogue.Kind { return dialogue.KindSardine }

func Sardine(rec Recorder, code string) *dialogue.Spec {
	const area = "Sardina"
	return &dialogue.Spec{
		Kind:      dialogue.KindSardine,
		NewFields: func() dialogue.Fields { return &SardineFields{} },
		Steps: []dialogue.Step{
			accessStep[*SardineFields](area, code),
			dateStep[*SardineFields](),
			companyStep[*SardineFields]("🏭 Seleccione la empresa que compra:"),
			dialogue.TextStep(stepSupplier,
				"🚛 Ingrese el nombre del proveedor de sardinas:",
				"El nombre del proveedor no puede estar vacío. Ingrese el proveedor:",
				validate.NonEmpty,
				func(f *SardineFields, v string) { f.Supplier = v }),
			countStep(stepCrates, "cestas recibidas", func(f *SardineFields, v int64) { f.Crates = v }),
			dialogue.TextStep(stepKg,
				"⚖️ Ingrese la cantidad de Kg recibidos (números positivos, puede usar decimales):",
				"❌ Cantidad inválida. Ingrese la cantidad de Kg (números positivos, puede usar decimales):",
				validate.PositiveDecimal,
				func(f *SardineFields, v float64) { f.Kg = v }),
			dialogue.TextStep(stepWorker,
				"👤 Ingrese el ID del trabajador que recibió la sardina:",
				"❌ ID inválido. Ingrese el ID del trabajador (solo números enteros positivos):",
				validate.PositiveInt,
				func(f *SardineFields, v int64) { f.WorkerID = v }),
		},
		Summary: func(fl dialogue.Fields) string {
			f := fl.(*SardineFields)
			return summary(area, &f.Production,
				"Proveedor: "+f.Supplier,
				fmt.Sprintf("Cestas: %d", f.Crates),
				"Kg: "+formatQty(f.Kg),
				fmt.Sprintf("ID Trabajador (receptor): %d", f.WorkerID))
		},
		EditFrom:   stepDate,
		EditNotice: editNotice(area),
		CancelText: "❌ Registro cancelado.",
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			f := s.Fields.(*SardineFields)
			records := fanOut(&f.Production, models.AreaSardine, f.Supplier, f.Kg, []int64{f.WorkerID})
			crates := float64(f.Crates)
			records[0].AuxiliaryQuantity = &crates
			return save(ctx, rec, records)
		},
	}
}

// TableFields is collected by the filling table dialogue.
type TableFields struct {
	Production
	WorkerIDs []int64
	Baskets   int64
}

func (*TableFields) Kind() dialogue.Kind { return dialogue.KindTable }

func Table(rec Recorder, code string) *dialogue.Spec {
	const area = "Mesa"
	return &dialogue.Spec{
		Kind:      dialogue.KindTable,
		NewFields: func() dialogue.Fields { return &TableFields{} },
		Steps: []dialogue.Step{
			accessStep[*TableFields](area, code),
			dateStep[*TableFields](),
			companyStep[*TableFields]("🏭 Seleccione la empresa que fabrica:"),
			workersStep(func(f *TableFields, ids []int64) { f.WorkerIDs = ids }),
			countStep(stepBaskets, "cestas procesadas", func(f *TableFields, v int64) { f.Baskets = v }),
		},
		Summary: func(fl dialogue.Fields) string {
			f := fl.(*TableFields)
			return summary("Mesa de Llenado", &f.Production,
				"Trabajadores ID: "+joinIDs(f.WorkerIDs),
				fmt.Sprintf("Cestas procesadas: %d", f.Baskets))
		},
		EditFrom:   stepDate,
		EditNotice: editNotice(area),
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			f := s.Fields.(*TableFields)
			return save(ctx, rec, fanOut(&f.Production, models.AreaTable, "", float64(f.Baskets), f.WorkerIDs))
		},
	}
}

// BoxFields is collected by the line and packing dialogues, which share
// the same shape.
type BoxFields struct {
	Production
	kind        dialogue.Kind
	ProductType string
	WorkerIDs   []int64
	Boxes       int64
}

func (f *BoxFields) Kind() dialogue.Kind { return f.kind }

func Line(rec Recorder, code string) *dialogue.Spec {
	return boxSpec(rec, code, dialogue.KindLine, models.AreaLine, "Línea", "Línea de Producción", "cajas producidas")
}

func Packing(rec Recorder, code string) *dialogue.Spec {
	return boxSpec(rec, code, dialogue.KindPacking, models.AreaPacking, "Empaque", "Empaque", "cajas empacadas")
}

func boxSpec(rec Recorder, code string, kind dialogue.Kind, area models.Area, name, title, unit string) *dialogue.Spec {
	return &dialogue.Spec{
		Kind:      kind,
		NewFields: func() dialogue.Fields { return &BoxFields{kind: kind} },
		Steps: []dialogue.Step{
			accessStep[*BoxFields](name, code),
			dateStep[*BoxFields](),
			companyStep[*BoxFields]("🏭 Seleccione la empresa que fabrica:"),
			productTypeStep(func(f *BoxFields, v string) { f.ProductType = v }),
			workersStep(func(f *BoxFields, ids []int64) { f.WorkerIDs = ids }),
			countStep(stepBoxes, unit, func(f *BoxFields, v int64) { f.Boxes = v }),
		},
		Summary: func(fl dialogue.Fields) string {
			f := fl.(*BoxFields)
			return summary(title, &f.Production,
				"Tipo: "+f.ProductType,
				"Trabajadores ID: "+joinIDs(f.WorkerIDs),
				fmt.Sprintf("Cajas: %d", f.Boxes))
		},
		EditFrom:   stepDate,
		EditNotice: editNotice(name),
		Commit: func(ctx context.Context, s *dialogue.Session) (chat.Prompt, error) {
			f := s.Fields.(*BoxFields)
			return save(ctx, rec, fanOut(&f.Production, area, f.ProductType, float64(f.Boxes), f.WorkerIDs))
		},
	}
}
