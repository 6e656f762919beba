// Package main is the poll pod: it prints `remaining:total` queue counts on
// stdout until the queue drains, so progress can be read from its logs.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
	"github.com/andrewasheridan/kaleidoscope/pkg/queue"
)

const pollInterval = 5 * time.Second

func main() {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = manifest.RedisServiceName
	}

	q := queue.New(redisHost)
	ctx := context.Background()

	for {
		remaining, total, err := q.Counts(ctx)
		if err != nil {
			log.Printf("[POLL] Failed to read queue counts: %v", err)
			time.Sleep(pollInterval)
			continue
		}

		// bare counts on stdout, the progress tracker parses these lines
		fmt.Println(queue.FormatCounts(remaining, total))

		if total > 0 && remaining == 0 {
			return
		}
		time.Sleep(pollInterval)
	}
}
