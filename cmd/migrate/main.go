package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"citypee/internal/dataset"
	"citypee/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|seed [geojson-path]|count]"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		err := database.Migrate(ctx, conn, func(stmt string) {
			fmt.Printf("  Applied: %s\n", database.Summarize(stmt))
		})
		if err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ Tables created successfully")

	case "drop":
		err := database.Drop(ctx, conn, func(stmt string) {
			fmt.Printf("  Dropped: %s\n", database.Summarize(stmt))
		})
		if err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ Tables dropped successfully")

	case "seed":
		path := "data/toilets.geojson"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		n, err := seedSuggestions(ctx, conn, path)
		if err != nil {
			log.Fatalf("Failed to seed suggestions: %v", err)
		}
		fmt.Printf("✅ Seeded %d toilets from %s\n", n, path)

	case "count":
		var count int64
		if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+database.SuggestionsTable).Scan(&count); err != nil {
			log.Fatalf("Failed to count suggestions: %v", err)
		}
		fmt.Printf("suggestions: %d\n", count)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// seedSuggestions copies a GeoJSON dataset into the suggestions table so
// duplicate checks see it even without the file.
func seedSuggestions(ctx context.Context, conn *pgx.Conn, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset: %w", err)
	}

	toilets, err := dataset.ParseGeoJSON(data)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO suggestions (id, lat, lng, properties, api_version, created_at)
		VALUES ($1, $2, $3, $4, 'seed', $5)
		ON CONFLICT (id) DO NOTHING
	`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, t := range toilets {
		batch.Queue(query, t.ID, t.Lat, t.Lng, map[string]interface{}{"name": t.Name}, now)
	}

	results := conn.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range toilets {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert toilet: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}
