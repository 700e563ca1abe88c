package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"kamadata-bot/internal/models"
)

const sqlDate = "2006-01-02"

// Worker operations
func (db *DB) UpsertWorker(ctx context.Context, w models.Worker) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO workers (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    updated_at = CURRENT_TIMESTAMP
	`, w.ID, w.Name)
	if err != nil {
		return storageErr("upsert worker", err)
	}
	return nil
}

// UpsertWorkers writes the batch in one transaction and returns its size.
func (db *DB) UpsertWorkers(ctx context.Context, workers []models.Worker) (int, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO workers (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    updated_at = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, w := range workers {
			if _, err := stmt.ExecContext(ctx, w.ID, strings.TrimSpace(w.Name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("upsert workers", err)
	}
	return len(workers), nil
}

func (db *DB) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, updated_at
		FROM workers
		ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("list workers", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		var w models.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.UpdatedAt); err != nil {
			return nil, storageErr("scan worker", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list workers", err)
	}
	return workers, nil
}

// Production operations

// InsertProductionRecords appends the batch atomically: either every record
// is stored or none is.
func (db *DB) InsertProductionRecords(ctx context.Context, records []models.ProductionRecord) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO production_records
			    (date, area, company, type, quantity, auxiliary_quantity, worker_id, responsible_id)
			VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			typ := sql.NullString{String: r.Type, Valid: r.Type != ""}
			_, err := stmt.ExecContext(ctx,
				r.Date.Format(sqlDate), string(r.Area), string(r.Company), typ,
				r.Quantity, r.AuxiliaryQuantity, r.WorkerID, r.ResponsibleID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("insert production records", err)
	}
	return nil
}

const reportSelect = `
	SELECT p.date, p.area, p.company, COALESCE(p.type, ''), p.quantity,
	       p.auxiliary_quantity, p.worker_id, COALESCE(w.name, '')
	FROM production_records p
	LEFT JOIN workers w ON w.id = p.worker_id
`

// RecordsByDate returns the records of one day ordered by area and company.
func (db *DB) RecordsByDate(ctx context.Context, date time.Time) ([]models.ReportRow, error) {
	return db.queryReport(ctx, "records by date", reportSelect+`
		WHERE p.date = $1::date
		ORDER BY p.area, p.company, p.id
	`, date.Format(sqlDate))
}

// RecordsByRange returns the records between start and end inclusive.
func (db *DB) RecordsByRange(ctx context.Context, start, end time.Time) ([]models.ReportRow, error) {
	return db.queryReport(ctx, "records by range", reportSelect+`
		WHERE p.date BETWEEN $1::date AND $2::date
		ORDER BY p.date, p.area, p.company, p.id
	`, start.Format(sqlDate), end.Format(sqlDate))
}

func (db *DB) queryReport(ctx context.Context, op, query string, args ...any) ([]models.ReportRow, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var report []models.ReportRow
	for rows.Next() {
		var (
			r   models.ReportRow
			aux sql.NullFloat64
		)
		if err := rows.Scan(&r.Date, &r.Area, &r.Company, &r.Type, &r.Quantity, &aux, &r.WorkerID, &r.WorkerName); err != nil {
			return nil, storageErr(op, err)
		}
		if aux.Valid {
			v := aux.Float64
			r.AuxiliaryQuantity = &v
		}
		report = append(report, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return report, nil
}

// Authorization operations

func (db *DB) LoadAuthorized(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id FROM authorized_users ORDER BY user_id`)
	if err != nil {
		return nil, storageErr("load authorized users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan authorized user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load authorized users", err)
	}
	return ids, nil
}

func (db *DB) SaveAuthorized(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO authorized_users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return storageErr("save authorized user", err)
	}
	return nil
}

func (db *DB) DeleteAuthorized(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM authorized_users WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("delete authorized user", err)
	}
	return nil
}

// Access request operations

func (db *DB) LoadPending(ctx context.Context) (map[int64]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id, display_name FROM pending_requests`)
	if err != nil {
		return nil, storageErr("load pending requests", err)
	}
	defer rows.Close()

	pending := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, storageErr("scan pending request", err)
		}
		pending[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load pending requests", err)
	}
	return pending, nil
}

// SavePending records a request; a repeated request refreshes it.
func (db *DB) SavePending(ctx context.Context, userID int64, displayName string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_requests (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    requested_at = CURRENT_TIMESTAMP
	`, userID, displayName)
	if err != nil {
		return storageErr("save pending request", err)
	}
	return nil
}

func (db *DB) DeletePending(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM pending_requests WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("delete pending request", err)
	}
	return nil
}
