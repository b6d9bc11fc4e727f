package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/model"
	"pdf-chat-be/internal/repository/pgvector"
	"pdf-chat-be/internal/repository/specification"
	"pdf-chat-be/internal/repository/unitofwork"
	"pdf-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error)
	require.NoError(t, db.AutoMigrate(&model.DocumentChunk{}))
	return db
}

func indexed(doc string, page int, text string, v ...float32) entity.IndexedChunk {
	return entity.IndexedChunk{
		Chunk:     entity.Chunk{Text: text, SourceRef: entity.SourceRef{Document: doc, Page: page}},
		Embedding: v,
	}
}

func TestPgvectorIndexReplaceAndQuery(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	collection := "it_" + uuid.NewString()
	t.Cleanup(func() {
		db.Where("collection = ?", collection).Delete(&model.DocumentChunk{})
	})

	factory := unitofwork.NewRepositoryFactory(db)
	index := pgvector.NewVectorIndex(factory, collection)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, index.ReplaceAll(ctx, []entity.IndexedChunk{
		indexed("old.pdf", 1, "stale", 1, 0, 0),
	}))

	require.NoError(t, index.ReplaceAll(ctx, []entity.IndexedChunk{
		indexed("new.pdf", 1, "north", 0, 1, 0),
		indexed("new.pdf", 2, "east", 1, 0, 0),
		indexed("new.pdf", 2, "north-east", 0.7, 0.7, 0),
	}))

	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	found, err := index.Query(ctx, []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "north", found[0].Chunk.Text)
	assert.Equal(t, "north-east", found[1].Chunk.Text)
	assert.InDelta(t, 1.0, found[0].Similarity, 1e-6)
	assert.Equal(t, "new.pdf", found[0].Chunk.SourceRef.Document)

	t.Run("rows are listed in chunk order", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		rows, err := uow.DocumentChunkRepository().FindAll(ctx,
			specification.ByCollection{Name: collection},
			specification.OrderBy{Field: "chunk_index"},
			specification.Pagination{Limit: 10},
		)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "north", rows[0].Content)
		assert.Equal(t, 2, rows[2].SourceRef.Page)
	})
}
