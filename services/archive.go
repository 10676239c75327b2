package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"seedmart_backend/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB names for the tick archive
const (
	ArchiveDBName     = "seedmart"
	ArchiveCollection = "market_ticks"

	archiveOpTimeout = 10 * time.Second
)

// TickArchive mirrors market summary snapshots to MongoDB after each
// pricing tick. It is optional: when MONGODB_URI is not configured the
// global stays nil and callers skip archiving.
type TickArchive struct {
	client *mongo.Client
	col    *mongo.Collection
}

// GlobalTickArchive is the process-wide archive instance, nil when disabled
var GlobalTickArchive *TickArchive

// InitTickArchive connects to MongoDB if configured
func InitTickArchive() error {
	uri := ""
	if config.AppConfig != nil {
		uri = config.AppConfig.MongoURI
	}
	if uri == "" {
		log.Println("MONGODB_URI not set, tick archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	GlobalTickArchive = &TickArchive{
		client: client,
		col:    client.Database(ArchiveDBName).Collection(ArchiveCollection),
	}
	log.Println("Tick archive connected to MongoDB")
	return nil
}

// SaveSnapshot stores one tick's market summary
func (a *TickArchive) SaveSnapshot(summary interface{}, updates int) error {
	ctx, cancel := context.WithTimeout(context.Background(), archiveOpTimeout)
	defer cancel()

	doc := bson.M{
		"recorded_at": time.Now(),
		"updates":     updates,
		"summary":     summary,
	}
	if _, err := a.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive tick snapshot: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (a *TickArchive) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveOpTimeout)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting tick archive: %v", err)
	}
}
