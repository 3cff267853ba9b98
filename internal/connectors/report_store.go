package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"wastewatch/internal"
	"wastewatch/internal/storage"
)

// ReportStore writes raw report mail to disk, content-addressed by hash so
// refetches are idempotent, and records the workflow row.
type ReportStore struct {
	db         *storage.DB
	rawMailDir string
}

func NewReportStore(db *storage.DB, rawMailDir string) *ReportStore {
	return &ReportStore{db: db, rawMailDir: rawMailDir}
}

func (s *ReportStore) Store(msg internal.FetchedMailMessage) (internal.ReportRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.ReportRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.ReportRow{}, err
		}
	}

	return s.db.UpsertReport(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
