package main

import (
	"context"
	"flag"
	"log"
	"os"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/env"
	"visual-diff/internal/runnable"
	"visual-diff/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var storageBackend string
	var directory string
	var connectivity int
	var mergeDistance int
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", os.TempDir()), "Output directory for the file storage backend")
	flag.IntVar(&connectivity, "connectivity", env.OrDefault("CONNECTIVITY", int(diffimage.EightConnected)), "Pixel connectivity for grouping regions (4 or 8)")
	flag.IntVar(&mergeDistance, "merge-distance", env.OrDefault("MERGE_DISTANCE", 0), "Merge regions closer than this many pixels (0 disables)")
	flag.BoolVar(&runnable.Debug, "debug", env.OrDefault("DEBUG", false), "Human readable logs and pprof endpoints")

	flag.Parse()

	ctx := context.Background()

	var s storage.Storage
	var err error
	switch storageBackend {
	case "file":
		s, err = storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
	case "s3":
		s, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
		})
	default:
		log.Fatalf("Unknown storage backend: %s", storageBackend)
	}
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	config := diffimage.DefaultConfig()
	config.Connectivity = diffimage.Connectivity(connectivity)
	config.MergeDistance = mergeDistance

	server := runnable.NewServer(s, config)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
