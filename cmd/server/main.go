package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "receiving-engine/internal/adapters/web"
	"receiving-engine/internal/ai"
	"receiving-engine/internal/app"
	"receiving-engine/internal/core"
	"receiving-engine/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	var locker core.CommitLocker
	redisClient, err := db.NewRedis(ctx)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = db.NewRedisLocker(redisClient)
		log.Println("commit serialization: redis")
	} else {
		locker = core.NewMutexLocker()
		log.Println("commit serialization: in-process (REDIS_ADDR not set)")
	}

	aliasService := core.NewAliasService(pool)
	catalogService := core.NewCatalogService(pool)
	supplierService := core.NewSupplierService(pool)
	orderService := core.NewPurchaseOrderService(pool)
	committer := core.NewReceiptCommitter(pool, aliasService, orderService, locker)

	store := core.NewSessionStore()
	store.StartPurge(ctx)

	sessionService := core.NewSessionService(store, catalogService, aliasService, supplierService, orderService, committer)

	var extractor ai.DocumentExtractor
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set, scan upload endpoint disabled")
	} else {
		extractor = ai.NewExtractor(apiKey)
	}

	svc := app.NewAppService(sessionService, catalogService, supplierService, orderService, extractor)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
