package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"document-access-service/internal/config"
	mongodb "document-access-service/internal/database/mongo"
	"document-access-service/internal/events"
	"document-access-service/internal/handlers"
	"document-access-service/internal/repository"
	"document-access-service/internal/service"
	"document-access-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/var", "log", "document_access_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	publisher, err := events.NewEventPublisher(config.ServiceConfig.RabbitMQURI())
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	repos := repository.Repositories_instance

	authorityService := service.NewAuthorityService(
		repos.DocumentRepository,
		repos.GrantRepository,
		repos.RedisRepository,
		publisher,
	)
	grantService := service.NewGrantService(
		repos.DocumentRepository,
		repos.GrantRepository,
		authorityService,
		publisher,
	)
	revocationService := service.NewRevocationService(
		repos.DocumentRepository,
		repos.RevocationRepository,
		grantService,
		authorityService,
		publisher,
	)

	app := fiber.New(fiber.Config{})

	app.Get("/health", func(c fiber.Ctx) error {
		if !mongodb.IsConnected() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("MongoDB unavailable")
		}
		return c.Status(fiber.StatusOK).SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.NewDocumentHandler(authorityService, grantService).RegisterRoutes(app)
	handlers.NewRevocationHandler(revocationService).RegisterRoutes(app)

	if err := discovery.ServiceDiscovery.Register(); err != nil {
		log.Printf("Warning: Failed to register with Consul: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", config.ServiceConfig.Port)
		if err := app.Listen(":" + config.ServiceConfig.Port); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	if err := discovery.ServiceDiscovery.Deregister(); err != nil {
		log.Printf("Error deregistering from Consul: %v", err)
	}

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	mongodb.DisconnectMongo()

	<-doneChan
	log.Println("Server exited, goodbye!")
}
