package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/club-overlay/config"
	"github.com/d60-Lab/club-overlay/internal/api/middleware"
	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/internal/service"
	"github.com/d60-Lab/club-overlay/pkg/database"
	"github.com/d60-Lab/club-overlay/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var checklistLabels = []string{
	"Complete your member profile",
	"Read the club handbook",
	"Join your team channel",
	"Book an onboarding call",
	"Attend your first meetup",
}

func main() {
	cfg := must(config.Load())
	_ = logger.Init(cfg.Log.Level, "console")
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	admin := model.User{ID: "admin", Name: "Club Admin", Email: "admin@example.com", Role: middleware.RoleAdmin}
	member := model.User{ID: "member", Name: "New Member", Email: "member@example.com", Role: "member"}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&[]model.User{admin, member}).Error; err != nil {
		panic(err)
	}

	messages := service.NewCatalogService(repository.NewCatalogRepository[model.Message](db, catalog.Inbox), nil)
	items := service.NewCatalogService(repository.NewCatalogRepository[model.ChecklistItem](db, catalog.Checklist), nil)

	for i, label := range checklistLabels {
		item := model.ChecklistItem{ID: uuid.New().String(), Label: label, SortOrder: (i + 1) * 10}
		if err := items.Create(ctx, &item); err != nil {
			panic(err)
		}
	}
	for i := 0; i < 3; i++ {
		msg := model.Message{
			ID:       uuid.New().String(),
			Title:    fmt.Sprintf("Welcome note #%d", i+1),
			Body:     "See the dashboard for this week's schedule.",
			SenderID: admin.ID,
		}
		if err := messages.Create(ctx, &msg); err != nil {
			panic(err)
		}
	}

	v := middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	for _, u := range []model.User{admin, member} {
		tok := must(v.Sign(u.ID, u.Role, 30*24*time.Hour))
		logger.Info("dev token", zap.String("user", u.ID), zap.String("token", tok))
	}
}
