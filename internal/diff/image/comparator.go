package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"time"
	"visual-diff/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

type Config struct {
	// Threshold is the luma difference (0-255) a pixel must exceed to count
	// as different.
	Threshold     int
	Connectivity  Connectivity
	MergeDistance int
	StrokeWidth   int
	OutlineColor  color.Color
	// DryRun skips writing the diff image; DiffImagePath is left empty.
	DryRun bool
	// Storage receives the diff image. Nil means files under os.TempDir().
	Storage storage.Storage
	// Logger receives progress and warnings. Nil discards.
	Logger *slog.Logger
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Threshold:    DefaultThreshold,
		Connectivity: EightConnected,
		StrokeWidth:  DefaultStrokeWidth,
		OutlineColor: DefaultOutlineColor,
	}
}

// Comparator holds immutable configuration only; Compare may be called
// concurrently for different image pairs.
type Comparator struct {
	differ    Differ
	extractor *RegionExtractor
	renderer  *OutlineRenderer
	storage   storage.Storage
	dryRun    bool
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

func NewComparator(c Config) (*Comparator, error) {
	if c.Threshold < 0 || c.Threshold > 255 {
		return nil, xerrors.Errorf("threshold must be within 0-255: %d", c.Threshold)
	}
	if c.Connectivity != FourConnected && c.Connectivity != EightConnected {
		return nil, xerrors.Errorf("connectivity must be 4 or 8: %d", c.Connectivity)
	}
	if c.MergeDistance < 0 {
		return nil, xerrors.Errorf("merge distance must not be negative: %d", c.MergeDistance)
	}
	if c.StrokeWidth < 1 {
		return nil, xerrors.Errorf("stroke width must be positive: %d", c.StrokeWidth)
	}

	if c.OutlineColor == nil {
		c.OutlineColor = DefaultOutlineColor
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Storage == nil && !c.DryRun {
		s, err := storage.NewFileStorage(context.Background(), storage.FileConfig{})
		if err != nil {
			return nil, xerrors.Errorf("failed to create file storage backend: %w", err)
		}
		c.Storage = s
	}

	return &Comparator{
		differ:    NewPixelDiff(uint8(c.Threshold)),
		extractor: NewRegionExtractor(c.Connectivity).WithMergeDistance(c.MergeDistance),
		renderer:  NewOutlineRenderer(c.OutlineColor, c.StrokeWidth),
		storage:   c.Storage,
		dryRun:    c.DryRun,
		logger:    c.Logger,
		now:       c.Now,
		tracer:    otel.Tracer("visual-diff/internal/diff/image"),
	}, nil
}

// Compare compares the image at testPath against the baseline at
// baselinePath.
//
// Errors are *DecodeError or *InvalidImageError, in which case no diff image
// is written, or *RenderError, in which case the returned result is complete
// except for DiffImagePath. The caller owns the written diff image.
func (c *Comparator) Compare(ctx context.Context, baselinePath string, testPath string) (*ComparisonResult, error) {
	ctx, span := c.tracer.Start(ctx, "Compare", trace.WithAttributes(
		attribute.String("baseline", baselinePath),
		attribute.String("test", testPath),
	))
	defer span.End()

	timestamp := c.now()
	logger := c.logger.With(slog.String("baseline", baselinePath), slog.String("test", testPath))

	baseline, baselineFormat, err := Load(baselinePath)
	if err != nil {
		return nil, fail(span, err)
	}
	target, targetFormat, err := Load(testPath)
	if err != nil {
		return nil, fail(span, err)
	}
	logger.Debug("loaded images", "baselineFormat", baselineFormat, "testFormat", targetFormat)

	reconciliation, err := Reconcile(baseline, target)
	if err != nil {
		return nil, fail(span, err)
	}
	if reconciliation.Resampled {
		logger.Info("resampled test image to baseline dimensions",
			"baselineDimensions", reconciliation.BaselineDimensions,
			"testDimensions", reconciliation.TargetDimensions,
		)
	}

	diffResult, err := c.differ.Calculate(reconciliation.Baseline, reconciliation.Target)
	if err != nil {
		return nil, fail(span, err)
	}

	metrics, err := CalculateMetrics(diffResult.Mask)
	if err != nil {
		return nil, fail(span, err)
	}

	regions := c.extractor.Extract(diffResult.Mask)

	span.SetAttributes(
		attribute.Int("diff_pixel_count", metrics.DiffPixelCount),
		attribute.Int("diff_regions", len(regions)),
	)

	var diffImagePath string
	var renderErr error
	if !c.dryRun {
		diffImagePath, renderErr = c.writeDiffImage(ctx, reconciliation.Baseline, regions, baselinePath, testPath, timestamp)
	}

	result := assemble(reconciliation, metrics, regions, diffImagePath, timestamp)

	if renderErr != nil {
		logger.Warn("failed to write diff image", "error", renderErr)
		return result, fail(span, &RenderError{Err: renderErr})
	}

	logger.Info("compared images",
		"matchPercentage", result.MatchPercentage,
		"diffPixelCount", result.DiffPixelCount,
		"diffRegions", len(result.DiffRegions),
	)
	return result, nil
}

func (c *Comparator) writeDiffImage(ctx context.Context, baseline image.Image, regions []Region, baselinePath string, testPath string, timestamp time.Time) (string, error) {
	diffImage := c.renderer.Render(baseline, regions)

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffImage); err != nil {
		return "", xerrors.Errorf("failed to encode diff image: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(baselinePath + testPath))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:16]
	key := fmt.Sprintf("visual-diff/%s/%s-%s.png", hash, timestamp.Format("20060102150405"), uuid.NewString())

	path, err := c.storage.Put(ctx, key, buffer.Bytes())
	if err != nil {
		return "", xerrors.Errorf("failed to save diff image: %w", err)
	}
	return path, nil
}

func assemble(r *Reconciliation, m Metrics, regions []Region, diffImagePath string, timestamp time.Time) *ComparisonResult {
	return &ComparisonResult{
		MatchPercentage:     m.MatchPercentage,
		DiffPercentage:      m.DiffPercentage,
		DiffPixelCount:      m.DiffPixelCount,
		DiffImagePath:       diffImagePath,
		DiffRegions:         regions,
		BaselineDimensions:  r.BaselineDimensions,
		TestDimensions:      r.TargetDimensions,
		ComparisonTimestamp: timestamp.Format(time.RFC3339Nano),
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Compare runs a single comparison with the default configuration and the
// given threshold.
func Compare(ctx context.Context, baselinePath string, testPath string, threshold int) (*ComparisonResult, error) {
	c := DefaultConfig()
	c.Threshold = threshold

	comparator, err := NewComparator(c)
	if err != nil {
		return nil, err
	}
	return comparator.Compare(ctx, baselinePath, testPath)
}
