// Package report renders stored production records as a spreadsheet and a
// printable table, and reads the worker directory spreadsheet.
package report

import (
	"strconv"

	"kamadata-bot/internal/models"
)

var columns = []string{"Fecha", "Área", "Empresa", "Tipo", "Cantidad", "Cant. auxiliar", "Trabajador ID", "Nombre"}

const dateLayout = "02/01/2006"

func cells(r models.ReportRow) []string {
	aux := ""
	if r.AuxiliaryQuantity != nil {
		aux = formatQty(*r.AuxiliaryQuantity)
	}
	return []string{
		r.Date.Format(dateLayout),
		string(r.Area),
		string(r.Company),
		r.Type,
		formatQty(r.Quantity),
		aux,
		strconv.FormatInt(r.WorkerID, 10),
		r.WorkerName,
	}
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
