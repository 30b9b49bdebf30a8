// mongodb.go - Run history persistence

package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kaigodx/care_sheet_gemini/configs"
)

var mongoClient *mongo.Client
var mongoDB *mongo.Database

// InitMongoDB connects to MongoDB. Run history is optional; when
// ENABLE_RUN_HISTORY is off this is never called and the pipeline works
// without any database.
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(configs.MONGO_URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(configs.MONGO_DB_NAME)

	log.Println("✅ Connected to MongoDB successfully!")
	return nil
}

// CloseMongoDB closes the MongoDB connection
func CloseMongoDB() {
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
		log.Println("MongoDB connection closed")
	}
}

// Enabled reports whether run history is connected.
func Enabled() bool {
	return mongoDB != nil
}

// RunRecord is one completed (or failed) processing run.
type RunRecord struct {
	RunID       string                 `bson:"run_id" json:"run_id"`
	Mode        string                 `bson:"mode" json:"mode"` // "document" or "audio"
	SheetType   string                 `bson:"sheet_type" json:"sheet_type"`
	Success     bool                   `bson:"success" json:"success"`
	WriteCount  int                    `bson:"write_count" json:"write_count"`
	TargetURL   string                 `bson:"target_url,omitempty" json:"target_url,omitempty"`
	Warnings    []string               `bson:"warnings,omitempty" json:"warnings,omitempty"`
	TokenUsage  map[string]interface{} `bson:"token_usage,omitempty" json:"token_usage,omitempty"`
	DurationMS  int64                  `bson:"duration_ms" json:"duration_ms"`
	SourceFiles []string               `bson:"source_files,omitempty" json:"source_files,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
}

// SaveRunRecord stores one run's outcome. A storage failure is logged and
// swallowed: history is bookkeeping, never a reason to fail a run that
// already wrote its sheet.
func SaveRunRecord(record RunRecord) {
	if mongoDB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record.CreatedAt = time.Now()
	if _, err := mongoDB.Collection("run_history").InsertOne(ctx, record); err != nil {
		log.Printf("⚠️  実行履歴の保存に失敗しました: %v", err)
		return
	}
	log.Printf("[%s] 💾 実行履歴を保存しました", record.RunID)
}

// RecentRuns returns the newest run records, most recent first.
func RecentRuns(limit int) ([]RunRecord, error) {
	if mongoDB == nil {
		return nil, fmt.Errorf("実行履歴は無効化されています")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := mongoDB.Collection("run_history").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query run_history: %w", err)
	}
	defer cursor.Close(ctx)

	var records []RunRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
