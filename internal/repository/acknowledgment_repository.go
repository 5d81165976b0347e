package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/club-overlay/internal/model"
)

// AcknowledgmentRepository 用户确认记录（稀疏覆盖表）仓储
type AcknowledgmentRepository interface {
	// InsertIfAbsent writes ack unless a row for the same pair exists.
	// It reports whether this call created the row.
	InsertIfAbsent(ctx context.Context, ack *model.Acknowledgment) (bool, error)
	// Upsert writes ack, replacing flag and timestamps of an existing row.
	Upsert(ctx context.Context, ack *model.Acknowledgment) error
	// UpsertBatch is Upsert for many rows; with keepExisting it leaves
	// existing rows untouched instead.
	UpsertBatch(ctx context.Context, acks []model.Acknowledgment, keepExisting bool) (int64, error)
	Find(ctx context.Context, userID, kind, itemID string) (*model.Acknowledgment, error)
	Count(ctx context.Context, userID, kind, itemID string) (int64, error)
	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(repo AcknowledgmentRepository) error) error
}

type acknowledgmentRepository struct {
	db *gorm.DB
}

func NewAcknowledgmentRepository(db *gorm.DB) AcknowledgmentRepository {
	return &acknowledgmentRepository{db: db}
}

var pairColumns = []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "item_id"}}

func (r *acknowledgmentRepository) InsertIfAbsent(ctx context.Context, ack *model.Acknowledgment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: pairColumns, DoNothing: true}).
		Create(ack)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *acknowledgmentRepository) Upsert(ctx context.Context, ack *model.Acknowledgment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   pairColumns,
			DoUpdates: clause.AssignmentColumns([]string{"acknowledged", "acknowledged_at", "updated_at"}),
		}).
		Create(ack).Error
}

func (r *acknowledgmentRepository) UpsertBatch(ctx context.Context, acks []model.Acknowledgment, keepExisting bool) (int64, error) {
	if len(acks) == 0 {
		return 0, nil
	}
	onConflict := clause.OnConflict{
		Columns:   pairColumns,
		DoUpdates: clause.AssignmentColumns([]string{"acknowledged", "acknowledged_at", "updated_at"}),
	}
	if keepExisting {
		onConflict = clause.OnConflict{Columns: pairColumns, DoNothing: true}
	}
	res := r.db.WithContext(ctx).Clauses(onConflict).CreateInBatches(&acks, 500)
	return res.RowsAffected, res.Error
}

func (r *acknowledgmentRepository) Find(ctx context.Context, userID, kind, itemID string) (*model.Acknowledgment, error) {
	var ack model.Acknowledgment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND item_id = ?", userID, kind, itemID).
		Take(&ack).Error
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

func (r *acknowledgmentRepository) Count(ctx context.Context, userID, kind, itemID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Acknowledgment{}).
		Where("user_id = ? AND kind = ? AND item_id = ?", userID, kind, itemID).
		Count(&cnt).Error
	return cnt, err
}

func (r *acknowledgmentRepository) Transaction(ctx context.Context, fn func(repo AcknowledgmentRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&acknowledgmentRepository{db: tx})
	})
}
