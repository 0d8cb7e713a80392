package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/env"
	"visual-diff/internal/logging"
	"visual-diff/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	var threshold int
	var connectivity int
	var mergeDistance int
	var strokeWidth int
	var dryRun bool
	var storageBackend string
	var directory string
	var debug bool
	flag.IntVar(&threshold, "threshold", env.OrDefault("THRESHOLD", diffimage.DefaultThreshold), "Luma difference (0-255) a pixel must exceed to count as different")
	flag.IntVar(&connectivity, "connectivity", env.OrDefault("CONNECTIVITY", int(diffimage.EightConnected)), "Pixel connectivity for grouping regions (4 or 8)")
	flag.IntVar(&mergeDistance, "merge-distance", env.OrDefault("MERGE_DISTANCE", 0), "Merge regions closer than this many pixels (0 disables)")
	flag.IntVar(&strokeWidth, "stroke-width", env.OrDefault("STROKE_WIDTH", diffimage.DefaultStrokeWidth), "Outline width in pixels")
	flag.BoolVar(&dryRun, "dry-run", env.OrDefault("DRY_RUN", false), "Compute metrics without writing the diff image")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", os.TempDir()), "Output directory for the file storage backend")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable logs")

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Fatalf("baseline, test not specified")
	}

	logger, err := logging.New(os.Stderr, debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := diffimage.DefaultConfig()
	config.Threshold = threshold
	config.Connectivity = diffimage.Connectivity(connectivity)
	config.MergeDistance = mergeDistance
	config.StrokeWidth = strokeWidth
	config.DryRun = dryRun
	config.Logger = logger

	if !dryRun {
		s, err := newStorage(ctx, storageBackend, directory)
		if err != nil {
			log.Fatalf("Failed to create storage backend: %v", err)
		}
		config.Storage = s
	}

	comparator, err := diffimage.NewComparator(config)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	result, err := comparator.Compare(ctx, args[0], args[1])
	var renderErr *diffimage.RenderError
	if err != nil && !errors.As(err, &renderErr) {
		log.Fatalf("Failed to compare images: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	if renderErr != nil {
		log.Fatalf("Failed to render diff image: %v", renderErr)
	}
}

func newStorage(ctx context.Context, backend string, directory string) (storage.Storage, error) {
	switch backend {
	case "file":
		return storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
		})
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", backend)
	}
}
