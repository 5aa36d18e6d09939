package main

import (
	"log"

	"github.com/yassineAchour0609/MediLink-sub000/config"
	"github.com/yassineAchour0609/MediLink-sub000/controllers"
	"github.com/yassineAchour0609/MediLink-sub000/models"
	"github.com/yassineAchour0609/MediLink-sub000/routes"
	"github.com/yassineAchour0609/MediLink-sub000/services"
)

func main() {
	cfg := config.Load()

	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	tokens := services.NewTokenService(cfg.JWTSecret)
	registry := services.NewRegistry()
	dispatcher := services.NewDispatcher(registry)
	messages := services.NewMessageService(db)
	uploads, err := services.NewUploadStore(cfg.UploadDir, cfg.BaseURL, cfg.UploadMaxBytes)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}

	r := routes.New(routes.Deps{
		Tokens:   tokens,
		Accounts: &controllers.AccountController{DB: db, Tokens: tokens},
		Messages: &controllers.MessageController{
			Messages:   messages,
			Dispatcher: dispatcher,
			Uploads:    uploads,
		},
		WS:        &controllers.WSController{Registry: registry, Tokens: tokens},
		UploadDir: uploads.Dir(),
	})

	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}
