package main

import (
	"log"

	"pdf-chat-be/internal/config"
	"pdf-chat-be/internal/model"
	"pdf-chat-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewVerboseGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Enabling pgvector extension...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		log.Fatalf("Error: Failed to create vector extension: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(&model.DocumentChunk{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("✅ Migration complete")
}
