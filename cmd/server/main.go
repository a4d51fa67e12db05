package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/tandir/internal/config"
	"github.com/example/tandir/internal/database"
	"github.com/example/tandir/internal/realtime"
	"github.com/example/tandir/internal/routes"
	"github.com/example/tandir/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	hub := realtime.NewHub()
	var publisher services.Publisher = hub
	if cfg.RedisURL != "" {
		bridge, err := realtime.NewBridge(cfg.RedisURL, hub)
		if err != nil {
			log.Fatalf("redis bridge: %v", err)
		}
		defer bridge.Close()
		publisher = fanout{hub, bridge}
	}

	alloc := services.NewAllocator(db, cfg.OrderNumberPrefix)
	live := services.NewLiveStats(cfg.BusinessLocation())
	orders := services.NewOrderService(db, alloc, publisher, live)
	reports := services.NewReportService(db, cfg.BusinessLocation())

	// Repair any orders left behind on a placeholder number by a crash
	// between insert and rename.
	if report, err := alloc.Reconcile(); err != nil {
		log.Printf("number reconcile pass failed: %v", err)
	} else if report.Scanned > 0 {
		log.Printf("number reconcile: scanned=%d renamed=%d failed=%d",
			report.Scanned, report.Renamed, report.Failed)
	}

	app := fiber.New(fiber.Config{
		AppName: "Tandir POS",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		DB:      db,
		Cfg:     cfg,
		Hub:     hub,
		Orders:  orders,
		Alloc:   alloc,
		Reports: reports,
		Live:    live,
	})

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

// fanout publishes each event to every sink.
type fanout []services.Publisher

func (f fanout) Publish(ev realtime.OrderEvent) {
	for _, p := range f {
		p.Publish(ev)
	}
}
