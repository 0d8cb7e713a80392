package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"visual-diff/internal/batch"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/env"
	"visual-diff/internal/logging"
	"visual-diff/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var threshold int
	var concurrency int
	var storageBackend string
	var directory string
	var callbackURL string
	var dryRun bool
	flag.IntVar(&threshold, "threshold", env.OrDefault("THRESHOLD", diffimage.DefaultThreshold), "Luma difference (0-255) a pixel must exceed to count as different")
	flag.IntVar(&concurrency, "concurrency", env.OrDefault("CONCURRENCY", runtime.GOMAXPROCS(0)), "Maximum comparisons in flight")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", os.TempDir()), "Output directory for the file storage backend")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.BoolVar(&dryRun, "dry-run", env.OrDefault("DRY_RUN", false), "Compute metrics without writing diff images")

	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("pairs file not specified")
	}

	logger, err := logging.New(os.Stderr, false)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	pairs, err := batch.ReadPairs(args[0])
	if err != nil {
		log.Fatalf("failed to read pairs: %v", err)
	}

	config := diffimage.DefaultConfig()
	config.Threshold = threshold
	config.DryRun = dryRun
	config.Logger = logger

	if !dryRun {
		switch storageBackend {
		case "file":
			config.Storage, err = storage.NewFileStorage(ctx, storage.FileConfig{
				Directory: directory,
			})
			if err != nil {
				log.Fatalf("failed to create file storage backend: %v", err)
			}
		case "s3":
			config.Storage, err = storage.NewS3Storage(ctx, storage.S3Config{
				Bucket: os.Getenv("S3_BUCKET"),
			})
			if err != nil {
				log.Fatalf("failed to create S3 storage backend: %v", err)
			}
		default:
			log.Fatalf("unknown storage backend: %s", storageBackend)
		}
	}

	comparator, err := diffimage.NewComparator(config)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	runner := &batch.Runner{
		Comparer:    comparator,
		Concurrency: concurrency,
		Logger:      logger,
	}
	outcomes, err := runner.Run(ctx, pairs)
	if err != nil {
		log.Fatalf("failed to run comparisons: %v", err)
	}

	j, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else {
		if err := batch.Callback(ctx, batch.NewCallbackClient(logger), callbackURL, j); err != nil {
			log.Fatalf("failed to send callback: %v", err)
		}
	}
}
