package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/d60-Lab/club-overlay/internal/cache"
	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/pkg/logger"
)

// AckRequest asks to set (user, item) acknowledgment. A nil Acknowledged
// means true for one-way catalogs and is rejected for toggle catalogs.
type AckRequest struct {
	UserID       string
	ItemID       string
	Acknowledged *bool
}

// fillTimeout bounds a shared count fill, which outlives any single caller.
const fillTimeout = 5 * time.Second

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the timestamp source for acknowledgments.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// OverlayService attaches per-user acknowledgment state to one catalog.
// It holds no per-request state; all coordination happens in the store.
type OverlayService[T model.Item] struct {
	items repository.CatalogRepository[T]
	acks  repository.AcknowledgmentRepository
	cache *cache.CountCache
	desc  catalog.Descriptor
	now   func() time.Time
	sf    singleflight.Group
}

// NewOverlayService builds the overlay for items' catalog. c may be nil.
func NewOverlayService[T model.Item](items repository.CatalogRepository[T], acks repository.AcknowledgmentRepository, c *cache.CountCache, opts ...Option) *OverlayService[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &OverlayService[T]{
		items: items,
		acks:  acks,
		cache: c,
		desc:  items.Descriptor(),
		now:   o.now,
	}
}

func (s *OverlayService[T]) Descriptor() catalog.Descriptor { return s.desc }

// ListWithStatus returns every active item in catalog order paired with
// userID's acknowledgment. Unknown users see nothing acknowledged.
func (s *OverlayService[T]) ListWithStatus(ctx context.Context, userID string) ([]repository.Entry[T], error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationf("user_id is required")
	}
	entries, err := s.items.ListWithStatus(ctx, userID)
	if err != nil {
		return nil, storeErr("list "+s.desc.Kind, err)
	}
	if entries == nil {
		entries = []repository.Entry[T]{}
	}
	return entries, nil
}

// Get returns a single active item with userID's acknowledgment.
func (s *OverlayService[T]) Get(ctx context.Context, userID, itemID string) (*repository.Entry[T], error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(itemID) == "" {
		return nil, validationf("user_id and item_id are required")
	}
	e, err := s.items.GetWithStatus(ctx, userID, itemID)
	if err != nil {
		return nil, storeErr("get "+s.desc.Kind, err)
	}
	return e, nil
}

// CountUnacknowledged returns the number of active items userID has not
// acknowledged, from the count cache when possible.
func (s *OverlayService[T]) CountUnacknowledged(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, validationf("user_id is required")
	}
	if s.cache == nil {
		return s.countFromStore(ctx, userID)
	}

	stamp, err := s.cache.Stamp(ctx, s.desc.Kind, userID)
	if err != nil {
		logger.Warn("count cache unavailable, reading store", zap.String("kind", s.desc.Kind), zap.Error(err))
		return s.countFromStore(ctx, userID)
	}
	if n, ok := s.cache.Get(ctx, s.desc.Kind, userID, stamp); ok {
		return n, nil
	}

	// Callers only share a fill computed under the stamp they observed.
	key := fmt.Sprintf("%s:%s:g%d:v%d", s.desc.Kind, userID, stamp.Generation, stamp.Version)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		n, err := s.countFromStore(fillCtx, userID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(fillCtx, s.desc.Kind, userID, stamp, n)
		return n, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

func (s *OverlayService[T]) countFromStore(ctx context.Context, userID string) (int64, error) {
	n, err := s.items.CountUnacknowledged(ctx, userID)
	if err != nil {
		return 0, storeErr("count "+s.desc.Kind, err)
	}
	return n, nil
}

func (s *OverlayService[T]) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *OverlayService[T]) validate(req AckRequest) (bool, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return false, validationf("user_id is required")
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return false, validationf("item_id is required")
	}
	switch s.desc.Variant {
	case catalog.OneWay:
		if req.Acknowledged != nil && !*req.Acknowledged {
			return false, validationf("%s acknowledgments cannot be reverted", s.desc.Kind)
		}
		return true, nil
	case catalog.Toggle:
		if req.Acknowledged == nil {
			return false, validationf("acknowledged flag is required")
		}
		return *req.Acknowledged, nil
	default:
		return false, validationf("catalog %s has no write variant", s.desc.Kind)
	}
}

// Acknowledge is the single write path. One-way catalogs keep the first
// row untouched on repeat calls; toggle catalogs overwrite flag and
// timestamp. Concurrent first writes for one pair collapse into one row.
func (s *OverlayService[T]) Acknowledge(ctx context.Context, req AckRequest) (*model.Acknowledgment, error) {
	acknowledged, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.items.GetActive(ctx, req.ItemID); err != nil {
		return nil, storeErr("acknowledge "+s.desc.Kind, err)
	}

	now := s.timestamp()
	row := &model.Acknowledgment{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Kind:         s.desc.Kind,
		ItemID:       req.ItemID,
		Acknowledged: acknowledged,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if acknowledged {
		row.AcknowledgedAt = &now
	}

	var (
		result  *model.Acknowledgment
		created bool
	)
	err = s.acks.Transaction(ctx, func(repo repository.AcknowledgmentRepository) error {
		var err error
		if s.desc.Variant == catalog.OneWay {
			created, err = repo.InsertIfAbsent(ctx, row)
		} else {
			err = repo.Upsert(ctx, row)
		}
		if err != nil {
			return err
		}
		result, err = repo.Find(ctx, req.UserID, s.desc.Kind, req.ItemID)
		return err
	})
	if err != nil {
		return nil, storeErr("acknowledge "+s.desc.Kind, err)
	}

	if s.desc.Variant == catalog.OneWay && !created {
		logger.Debug("acknowledgment already recorded",
			zap.String("kind", s.desc.Kind), zap.String("user", req.UserID), zap.String("item", req.ItemID))
		return result, nil
	}
	s.cache.Invalidate(ctx, s.desc.Kind, req.UserID)
	logger.Debug("acknowledgment written",
		zap.String("kind", s.desc.Kind),
		zap.String("user", req.UserID),
		zap.String("item", req.ItemID),
		zap.Bool("acknowledged", result.Acknowledged),
	)
	return result, nil
}

// AcknowledgeAll acknowledges every active item userID has not acknowledged
// yet and returns how many rows were written.
func (s *OverlayService[T]) AcknowledgeAll(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, validationf("user_id is required")
	}
	ids, err := s.items.UnacknowledgedIDs(ctx, userID)
	if err != nil {
		return 0, storeErr("acknowledge all "+s.desc.Kind, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.timestamp()
	rows := make([]model.Acknowledgment, 0, len(ids))
	for _, id := range ids {
		at := now
		rows = append(rows, model.Acknowledgment{
			ID:             uuid.New().String(),
			UserID:         userID,
			Kind:           s.desc.Kind,
			ItemID:         id,
			Acknowledged:   true,
			AcknowledgedAt: &at,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	n, err := s.acks.UpsertBatch(ctx, rows, s.desc.Variant == catalog.OneWay)
	if err != nil {
		return 0, storeErr("acknowledge all "+s.desc.Kind, err)
	}
	s.cache.Invalidate(ctx, s.desc.Kind, userID)
	logger.Info("acknowledged all", zap.String("kind", s.desc.Kind), zap.String("user", userID), zap.Int64("rows", n))
	return n, nil
}
