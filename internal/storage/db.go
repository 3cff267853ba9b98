package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"wastewatch/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY,
  syncUid TEXT,
  name TEXT NOT NULL,
  category TEXT,
  unit TEXT,
  aliases TEXT,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_syncUid ON products(syncUid);

CREATE TABLE IF NOT EXISTS reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS datasets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  source TEXT NOT NULL,
  hash TEXT NOT NULL,
  reportId INTEGER,
  rowCount INTEGER NOT NULL,
  tableJson TEXT NOT NULL,
  mappingJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(reportId) REFERENCES reports(id)
);
CREATE INDEX IF NOT EXISTS idx_datasets_hash ON datasets(hash);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  datasetId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(datasetId) REFERENCES datasets(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(products []internal.CatalogProduct) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (id, syncUid, name, category, unit, aliases, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  syncUid=excluded.syncUid,
  name=excluded.name,
  category=excluded.category,
  unit=excluded.unit,
  aliases=excluded.aliases,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		aliasJSON, _ := json.Marshal(p.Aliases)
		if _, err := stmt.Exec(p.ID, p.SyncUID, p.Name, p.Category, p.Unit, string(aliasJSON), p.UpdatedAt, p.RawJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.CatalogProduct, error) {
	rows, err := d.conn.Query(`SELECT id, syncUid, name, category, unit, aliases, updatedAt, raw_json FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogProduct
	for rows.Next() {
		var p internal.CatalogProduct
		var aliasJSON string
		if err := rows.Scan(&p.ID, &p.SyncUID, &p.Name, &p.Category, &p.Unit, &aliasJSON, &p.UpdatedAt, &p.RawJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(aliasJSON), &p.Aliases)
		out = append(out, p)
	}

	return out, rows.Err()
}

func (d *DB) InsertDataset(name, source, hash string, reportID *int, table internal.RawTable, mapping internal.RoleMapping) (int64, error) {
	tableJSON, err := json.Marshal(table)
	if err != nil {
		return 0, err
	}
	mappingJSON, _ := json.Marshal(mapping)

	result, err := d.conn.Exec(`
INSERT INTO datasets (name, source, hash, reportId, rowCount, tableJson, mappingJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, name, source, hash, reportID, len(table.Rows), string(tableJSON), string(mappingJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) GetDataset(id int) (*internal.DatasetRow, internal.RawTable, internal.RoleMapping, error) {
	var row internal.DatasetRow
	err := d.conn.QueryRow(`
SELECT id, name, source, hash, reportId, rowCount, tableJson, mappingJson, createdAt
FROM datasets WHERE id = ?
`, id).Scan(&row.ID, &row.Name, &row.Source, &row.Hash, &row.ReportID, &row.RowCount, &row.TableJSON, &row.MappingJSON, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.RawTable{}, nil, nil
	}
	if err != nil {
		return nil, internal.RawTable{}, nil, err
	}

	var table internal.RawTable
	if err := json.Unmarshal([]byte(row.TableJSON), &table); err != nil {
		return nil, internal.RawTable{}, nil, fmt.Errorf("decode dataset %d: %w", id, err)
	}
	mapping := internal.RoleMapping{}
	_ = json.Unmarshal([]byte(row.MappingJSON), &mapping)

	return &row, table, mapping, nil
}

func (d *DB) ListDatasets(limit int) ([]internal.DatasetRow, error) {
	rows, err := d.conn.Query(`
SELECT id, name, source, hash, reportId, rowCount, tableJson, mappingJson, createdAt
FROM datasets ORDER BY createdAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DatasetRow
	for rows.Next() {
		var row internal.DatasetRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Source, &row.Hash, &row.ReportID, &row.RowCount, &row.TableJSON, &row.MappingJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) ListDatasetsForReport(reportID int) ([]internal.DatasetRow, error) {
	rows, err := d.conn.Query(`
SELECT id, name, source, hash, reportId, rowCount, tableJson, mappingJson, createdAt
FROM datasets WHERE reportId = ? ORDER BY id ASC
`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DatasetRow
	for rows.Next() {
		var row internal.DatasetRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Source, &row.Hash, &row.ReportID, &row.RowCount, &row.TableJSON, &row.MappingJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) DeleteDatasetsForReport(reportID int) error {
	_, err := d.conn.Exec(`DELETE FROM datasets WHERE reportId = ?`, reportID)
	return err
}

func (d *DB) UpsertReport(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.ReportRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO reports (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.ReportRow{}, err
	}

	row, err := d.GetReportByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.ReportRow{}, err
	}
	if row == nil {
		return internal.ReportRow{}, errors.New("failed to upsert report")
	}
	return *row, nil
}

func (d *DB) GetReportByProviderMessageID(provider, messageID string) (*internal.ReportRow, error) {
	var row internal.ReportRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM reports WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetReportByID(id int) (*internal.ReportRow, error) {
	var row internal.ReportRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM reports WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListReportsByStatus(status string, limit int) ([]internal.ReportRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM reports WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReportRow
	for rows.Next() {
		var row internal.ReportRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateReportStatus(reportID int, status string) error {
	_, err := d.conn.Exec(`UPDATE reports SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, reportID)
	return err
}

func (d *DB) MustReportByProviderMessageID(provider, messageID string) (internal.ReportRow, error) {
	row, err := d.GetReportByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.ReportRow{}, err
	}
	if row == nil {
		return internal.ReportRow{}, fmt.Errorf("report not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) InsertRun(traceID string, datasetID *int64, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, datasetId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, datasetID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
