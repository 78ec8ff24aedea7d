package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/auth"
	"github.com/toikobi401/MessengerClone/internal/blob"
	"github.com/toikobi401/MessengerClone/internal/config"
	"github.com/toikobi401/MessengerClone/internal/database"
	"github.com/toikobi401/MessengerClone/internal/email"
	"github.com/toikobi401/MessengerClone/internal/presence"
	"github.com/toikobi401/MessengerClone/internal/server"
	"github.com/toikobi401/MessengerClone/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	var st store.Store
	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL, cfg.GinMode != gin.ReleaseMode)
		if err != nil {
			log.Fatal(err)
		}
		st = db
	} else {
		log.Print("no database configured, using in-memory store")
		st = store.NewMemory()
	}

	var sender email.Sender
	switch {
	case cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "":
		sender = email.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailFrom)
	case cfg.SMTPHost != "":
		sender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	default:
		log.Print("no mailer configured, logging one-time codes instead")
		sender = &email.LogSender{Logf: log.Printf}
	}

	var blobClient *blob.Client
	if cfg.CloudName != "" {
		blobClient = blob.NewClient(cfg.CloudName, cfg.CloudAPIKey, cfg.CloudSecret, cfg.UploadFolder)
	}

	tokenCfg := auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.TokenExpiry(),
		Issuer: "messenger-clone",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Email:       sender,
		Blob:        blobClient,
		Presence:    presence.NewTable(),
		ClientURL:   cfg.ClientURL,
	})

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(*cfg, router))
}
