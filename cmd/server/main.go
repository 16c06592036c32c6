package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/lumenworks/newsletter-api/internal/config"
	"github.com/lumenworks/newsletter-api/internal/database"
	"github.com/lumenworks/newsletter-api/internal/handler"
	"github.com/lumenworks/newsletter-api/internal/listsync"
	"github.com/lumenworks/newsletter-api/internal/mailer"
	"github.com/lumenworks/newsletter-api/internal/queue"
	"github.com/lumenworks/newsletter-api/internal/repository"
	"github.com/lumenworks/newsletter-api/internal/router"
	queue_publisher "github.com/lumenworks/newsletter-api/internal/service"
	"github.com/lumenworks/newsletter-api/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("database: %v", err)
	}

	// Seed the admin account; the environment's password always wins.
	admins := repository.NewAdminRepo(db)
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("admin seed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := admins.Ensure(ctx, cfg.AdminEmail, hash); err != nil {
		cancel()
		log.Fatalf("admin seed: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient() // nil means rate limiting/caching degrade to passthrough
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}

	subs := repository.NewSubscriberRepo(db)
	campaigns := repository.NewCampaignRepo(db)
	tokens := repository.NewTokenRepo(db)

	mail := mailer.New(mailer.Config{
		Enabled:   cfg.Mail.Enabled,
		SMTPHost:  cfg.Mail.SMTPHost,
		SMTPPort:  cfg.Mail.SMTPPort,
		SMTPUser:  cfg.Mail.SMTPUser,
		SMTPPass:  cfg.Mail.SMTPPass,
		ResendKey: cfg.Mail.ResendKey,
		Senders: map[string]string{
			mailer.FromInfo:       cfg.Mail.FromInfo,
			mailer.FromAccounts:   cfg.Mail.FromAccounts,
			mailer.FromNewsletter: cfg.Mail.FromNewsletter,
		},
	})

	// The list-sync integration is optional; a nil client stays out of
	// the handler so the interface field remains nil too.
	var list listsync.Syncer
	if c := listsync.New(cfg.ListSync.APIURL, cfg.ListSync.APIKey, cfg.ListSync.ListID); c != nil {
		list = c
	}

	n := handler.NewNewsletterHandler(cfg, subs, mail, list)
	a := handler.NewAuthHandler(cfg, admins, tokens)
	adm := handler.NewAdminHandler(subs, campaigns, queue_publisher.PublishCampaignJobs)

	// Campaign delivery runs in the background off the broker queue.
	go queue.StartCampaignConsumer(queue.ConsumerDeps{
		Mail:      mail,
		Campaigns: campaigns,
		Stats:     subs,
		SiteURL:   cfg.SiteURL,
	})

	e := echo.New()
	router.Register(e, n, a, adm, rdb, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
