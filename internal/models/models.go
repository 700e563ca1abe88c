package models

import "time"

type Area string

const (
	AreaSardine Area = "Sardina"
	AreaTable   Area = "Mesa"
	AreaLine    Area = "Línea"
	AreaPacking Area = "Empaque"
)

type Company string

const (
	CompanyKamada   Company = "Kamada"
	CompanyPariamar Company = "Pariamar"
)

// Companies lists the manufacturing companies in the order they are offered.
var Companies = []Company{CompanyKamada, CompanyPariamar}

type Worker struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ProductionRecord is immutable once written. Type is empty when the area
// does not use it and AuxiliaryQuantity is only set by the sardine area.
type ProductionRecord struct {
	ID                int64     `db:"id"`
	Date              time.Time `db:"date"`
	Area              Area      `db:"area"`
	Company           Company   `db:"company"`
	Type              string    `db:"type"`
	Quantity          float64   `db:"quantity"`
	AuxiliaryQuantity *float64  `db:"auxiliary_quantity"`
	WorkerID          int64     `db:"worker_id"`
	ResponsibleID     int64     `db:"responsible_id"`
	CreatedAt         time.Time `db:"created_at"`
}

// ReportRow is a production record joined with the worker directory.
// WorkerName is empty when the worker is not in the directory.
type ReportRow struct {
	Date              time.Time
	Area              Area
	Company           Company
	Type              string
	Quantity          float64
	AuxiliaryQuantity *float64
	WorkerID          int64
	WorkerName        string
}
