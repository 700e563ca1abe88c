package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"kamadata-bot/internal/models"

	"go.uber.org/zap/zaptest"
)

// openTestDB connects to TEST_DATABASE_DSN, applies the migrations and
// empties every table. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn, 1, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE workers, production_records, authorized_users, pending_requests`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProductionRecordsAndReports(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertWorkers(ctx, []models.Worker{{ID: 12, Name: "Ana"}, {ID: 34, Name: "Luis"}}); err != nil {
		t.Fatalf("UpsertWorkers: %v", err)
	}
	if err := db.UpsertWorker(ctx, models.Worker{ID: 12, Name: "Ana María"}); err != nil {
		t.Fatalf("UpsertWorker: %v", err)
	}

	crates := 10.0
	batch := []models.ProductionRecord{
		{Date: day(2024, 3, 15), Area: models.AreaTable, Company: models.CompanyPariamar, Quantity: 40, WorkerID: 12, ResponsibleID: 1},
		{Date: day(2024, 3, 15), Area: models.AreaTable, Company: models.CompanyPariamar, Quantity: 40, WorkerID: 99, ResponsibleID: 1},
		{Date: day(2024, 3, 15), Area: models.AreaSardine, Company: models.CompanyKamada, Type: "Pesca Sur", Quantity: 12.5, AuxiliaryQuantity: &crates, WorkerID: 34, ResponsibleID: 1},
		{Date: day(2024, 3, 16), Area: models.AreaLine, Company: models.CompanyKamada, Type: "Tomate", Quantity: 5, WorkerID: 34, ResponsibleID: 1},
	}
	if err := db.InsertProductionRecords(ctx, batch); err != nil {
		t.Fatalf("InsertProductionRecords: %v", err)
	}

	rows, err := db.RecordsByDate(ctx, day(2024, 3, 15))
	if err != nil {
		t.Fatalf("RecordsByDate: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Area != models.AreaTable || rows[0].WorkerName != "Ana María" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].WorkerID != 99 || rows[1].WorkerName != "" {
		t.Fatalf("unknown worker row = %+v", rows[1])
	}
	if rows[2].Area != models.AreaSardine || rows[2].Type != "Pesca Sur" || rows[2].AuxiliaryQuantity == nil || *rows[2].AuxiliaryQuantity != 10 {
		t.Fatalf("sardine row = %+v", rows[2])
	}

	rows, err = db.RecordsByRange(ctx, day(2024, 3, 15), day(2024, 3, 16))
	if err != nil {
		t.Fatalf("RecordsByRange: %v", err)
	}
	if len(rows) != 4 || !rows[3].Date.Equal(day(2024, 3, 16)) {
		t.Fatalf("range rows = %+v", rows)
	}
}

func TestInsertProductionRecordsIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	batch := []models.ProductionRecord{
		{Date: day(2024, 1, 1), Area: models.AreaTable, Company: models.CompanyKamada, Quantity: 1, WorkerID: 1, ResponsibleID: 1},
		{Date: day(2024, 1, 1), Area: models.AreaTable, Company: models.CompanyKamada, Quantity: 0, WorkerID: 2, ResponsibleID: 1},
	}
	err := db.InsertProductionRecords(ctx, batch)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	rows, err := db.RecordsByDate(ctx, day(2024, 1, 1))
	if err != nil {
		t.Fatalf("RecordsByDate: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("partial batch stored: %+v", rows)
	}
}

func TestAuthorizedUsers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{5, 3, 5} {
		if err := db.SaveAuthorized(ctx, id); err != nil {
			t.Fatalf("SaveAuthorized(%d): %v", id, err)
		}
	}
	if err := db.DeleteAuthorized(ctx, 3); err != nil {
		t.Fatalf("DeleteAuthorized: %v", err)
	}
	ids, err := db.LoadAuthorized(ctx)
	if err != nil {
		t.Fatalf("LoadAuthorized: %v", err)
	}
	if len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("ids = %v", ids)
	}

	workers, err := db.ListWorkers(ctx)
	if err != nil || len(workers) != 0 {
		t.Fatalf("ListWorkers = %v, %v", workers, err)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "kamada", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=kamada sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestPendingRequests(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SavePending(ctx, 55, "ana"); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	if err := db.SavePending(ctx, 55, "ana_b"); err != nil {
		t.Fatalf("repeated SavePending: %v", err)
	}
	if err := db.SavePending(ctx, 56, ""); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	if err := db.DeletePending(ctx, 56); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}

	pending, err := db.LoadPending(ctx)
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if len(pending) != 1 || pending[55] != "ana_b" {
		t.Fatalf("pending = %v", pending)
	}
}
