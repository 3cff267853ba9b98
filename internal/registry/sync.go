package registry

import (
	"context"
	"time"

	"wastewatch/internal/config"
	"wastewatch/internal/storage"
)

type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	products, err := s.client.GetProductsScrollAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertProducts(products); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("registry.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context, mode string) (int, error) {
	products, err := s.client.GetProductsIncremental(ctx, mode)
	if err != nil {
		return 0, err
	}
	if len(products) > 0 {
		if err := s.db.UpsertProducts(products); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("registry.last_incremental_sync."+mode, time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}
