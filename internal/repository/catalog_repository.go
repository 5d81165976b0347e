package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
)

// Entry is a catalog item joined with one user's acknowledgment state.
type Entry[T model.Item] struct {
	Item           T          `gorm:"embedded"`
	Acknowledged   bool       `gorm:"column:acknowledged"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at"`
}

// CatalogRepository 共享内容目录 + 用户覆盖状态的读取
type CatalogRepository[T model.Item] interface {
	Descriptor() catalog.Descriptor
	ListActive(ctx context.Context) ([]T, error)
	GetActive(ctx context.Context, id string) (*T, error)
	// ListWithStatus outer-joins active items with userID's acknowledgments
	// in one statement, keeping catalog order.
	ListWithStatus(ctx context.Context, userID string) ([]Entry[T], error)
	GetWithStatus(ctx context.Context, userID, id string) (*Entry[T], error)
	// CountUnacknowledged counts active items without an acknowledged row
	// for userID as a single aggregate query.
	CountUnacknowledged(ctx context.Context, userID string) (int64, error)
	// UnacknowledgedIDs returns ids of active items userID has not acknowledged.
	UnacknowledgedIDs(ctx context.Context, userID string) ([]string, error)
	Create(ctx context.Context, item *T) error
	// SetActive toggles visibility; acknowledgment rows are never touched.
	SetActive(ctx context.Context, id string, active bool) error
}

type catalogRepository[T model.Item] struct {
	db   *gorm.DB
	desc catalog.Descriptor
}

func NewCatalogRepository[T model.Item](db *gorm.DB, desc catalog.Descriptor) CatalogRepository[T] {
	return &catalogRepository[T]{db: db, desc: desc}
}

func (r *catalogRepository[T]) Descriptor() catalog.Descriptor { return r.desc }

// items starts a query over the aliased item table with the descriptor's
// extra columns and joins applied.
func (r *catalogRepository[T]) items(ctx context.Context, extra ...string) *gorm.DB {
	cols := append([]string{"i.*"}, r.desc.Columns...)
	cols = append(cols, extra...)
	q := r.db.WithContext(ctx).Table(r.desc.Table + " AS i").Select(strings.Join(cols, ", "))
	for _, j := range r.desc.Joins {
		q = q.Joins(j)
	}
	return q
}

func (r *catalogRepository[T]) withStatus(ctx context.Context, userID string) *gorm.DB {
	return r.items(ctx,
		"COALESCE(a.acknowledged, FALSE) AS acknowledged",
		"a.acknowledged_at AS acknowledged_at",
	).
		Joins("LEFT JOIN acknowledgments a ON a.item_id = i.id AND a.kind = ? AND a.user_id = ?", r.desc.Kind, userID).
		Where("i.active = ?", true)
}

func (r *catalogRepository[T]) ListActive(ctx context.Context) ([]T, error) {
	var res []T
	err := r.items(ctx).Where("i.active = ?", true).Order(r.desc.OrderBy).Scan(&res).Error
	return res, err
}

func (r *catalogRepository[T]) GetActive(ctx context.Context, id string) (*T, error) {
	var item T
	res := r.items(ctx).Where("i.id = ? AND i.active = ?", id, true).Limit(1).Scan(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r *catalogRepository[T]) ListWithStatus(ctx context.Context, userID string) ([]Entry[T], error) {
	var res []Entry[T]
	err := r.withStatus(ctx, userID).Order(r.desc.OrderBy).Scan(&res).Error
	return res, err
}

func (r *catalogRepository[T]) GetWithStatus(ctx context.Context, userID, id string) (*Entry[T], error) {
	var e Entry[T]
	res := r.withStatus(ctx, userID).Where("i.id = ?", id).Limit(1).Scan(&e)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *catalogRepository[T]) acknowledgedSubquery(userID string) *gorm.DB {
	return r.db.Table("acknowledgments AS a").
		Select("1").
		Where("a.item_id = i.id AND a.kind = ? AND a.user_id = ? AND a.acknowledged = ?", r.desc.Kind, userID, true)
}

func (r *catalogRepository[T]) CountUnacknowledged(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table(r.desc.Table+" AS i").
		Where("i.active = ?", true).
		Where("NOT EXISTS (?)", r.acknowledgedSubquery(userID)).
		Count(&n).Error
	return n, err
}

func (r *catalogRepository[T]) UnacknowledgedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table(r.desc.Table+" AS i").
		Where("i.active = ?", true).
		Where("NOT EXISTS (?)", r.acknowledgedSubquery(userID)).
		Order(r.desc.OrderBy).
		Pluck("i.id", &ids).Error
	return ids, err
}

func (r *catalogRepository[T]) Create(ctx context.Context, item *T) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *catalogRepository[T]) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
