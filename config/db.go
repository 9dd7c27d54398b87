package config

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	MongoClient *mongo.Client
	DB          *mongo.Database
)

// InitDB connects to MongoDB and pings it before the server starts serving.
func InitDB() {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "convergent"
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	MongoClient, err = mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err = MongoClient.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Database connection failed:", err)
	}

	DB = MongoClient.Database(dbName)
}

// AnalyticsCollection returns a collection handle routed to secondary members
// when available, so the heavy list/detail aggregations stay off the primary.
func AnalyticsCollection(name string) *mongo.Collection {
	return DB.Collection(name, options.Collection().SetReadPreference(readpref.SecondaryPreferred()))
}

// CloseDB disconnects the Mongo client on shutdown.
func CloseDB() {
	if MongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := MongoClient.Disconnect(ctx); err != nil {
		log.Printf("Failed to disconnect from database: %v", err)
	}
}
