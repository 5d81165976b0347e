package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/d60-Lab/club-overlay/internal/cache"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/pkg/logger"
)

// CatalogService is the administrative side of a catalog. Every write
// bumps the catalog generation so cached counts are recomputed.
type CatalogService[T model.Item] struct {
	items repository.CatalogRepository[T]
	cache *cache.CountCache
}

func NewCatalogService[T model.Item](items repository.CatalogRepository[T], c *cache.CountCache) *CatalogService[T] {
	return &CatalogService[T]{items: items, cache: c}
}

func (s *CatalogService[T]) ListActive(ctx context.Context) ([]T, error) {
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return nil, storeErr("list catalog", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Create stores item, which must carry its id.
func (s *CatalogService[T]) Create(ctx context.Context, item *T) error {
	if item == nil || strings.TrimSpace((*item).ItemID()) == "" {
		return validationf("item id is required")
	}
	kind := s.items.Descriptor().Kind
	if err := s.items.Create(ctx, item); err != nil {
		return storeErr("create "+kind, err)
	}
	s.cache.BumpGeneration(ctx, kind)
	logger.Info("catalog item created", zap.String("kind", kind), zap.String("id", (*item).ItemID()))
	return nil
}

// Deactivate hides id from lists and counts; acknowledgment history stays.
func (s *CatalogService[T]) Deactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *CatalogService[T]) Reactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *CatalogService[T]) setActive(ctx context.Context, id string, active bool) error {
	if strings.TrimSpace(id) == "" {
		return validationf("item id is required")
	}
	kind := s.items.Descriptor().Kind
	if err := s.items.SetActive(ctx, id, active); err != nil {
		return storeErr("update "+kind, err)
	}
	s.cache.BumpGeneration(ctx, kind)
	logger.Info("catalog item visibility changed", zap.String("kind", kind), zap.String("id", id), zap.Bool("active", active))
	return nil
}
