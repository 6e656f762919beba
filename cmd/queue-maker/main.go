// Package main is the queue-maker: it runs once inside the cluster, lists
// every key in the origin bucket and fills the redis work queue with batches
// of them.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
	"github.com/andrewasheridan/kaleidoscope/pkg/objectstore"
	"github.com/andrewasheridan/kaleidoscope/pkg/queue"
)

func main() {
	originBucket := os.Getenv("ORIGIN_BUCKET")
	if originBucket == "" {
		log.Fatal("[QUEUE-MAKER] ORIGIN_BUCKET must be set")
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = manifest.RedisServiceName
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv(manifest.EnvRegion)),
	})
	if err != nil {
		log.Fatalf("[QUEUE-MAKER] Failed to create AWS session: %v", err)
	}
	store := objectstore.New(sess)

	ctx := context.Background()

	keys, err := store.ListKeys(ctx, originBucket)
	if err != nil {
		log.Fatalf("[QUEUE-MAKER] Failed to list %s: %v", originBucket, err)
	}
	log.Printf("[QUEUE-MAKER] Found %d images in %s", len(keys), originBucket)

	queued, err := queue.New(redisHost).Fill(ctx, keys, queue.DefaultBatchSize)
	if err != nil {
		log.Fatalf("[QUEUE-MAKER] Failed to fill the queue: %v", err)
	}
	log.Printf("[QUEUE-MAKER] Queued %d batches, done", queued)
}
