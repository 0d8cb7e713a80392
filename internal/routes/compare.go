package routes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/myhttp"
	"visual-diff/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

const maxUploadMemory = 32 << 20

type CompareResponse struct {
	*diffimage.ComparisonResult
	// DiffData is the base64 encoded diff image, present when inline=true.
	DiffData string `json:"diff_data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Compare handles multipart uploads of a baseline and a test image.
func Compare(config diffimage.Config, storageClient storage.Storage, comparisons metric.Int64Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		c := config
		c.Storage = storageClient
		c.Logger = logger
		if v := r.FormValue("threshold"); v != "" {
			threshold, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "threshold must be an integer", http.StatusBadRequest)
				return
			}
			c.Threshold = threshold
		}
		inline, _ := strconv.ParseBool(r.FormValue("inline"))

		comparator, err := diffimage.NewComparator(c)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		directory, err := os.MkdirTemp("", "visual-diff-upload-")
		if err != nil {
			logger.Error("failed to create upload directory", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		defer os.RemoveAll(directory)

		baselinePath, err := saveUpload(r, "baseline", directory)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		testPath, err := saveUpload(r, "test", directory)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := comparator.Compare(r.Context(), baselinePath, testPath)

		var decodeErr *diffimage.DecodeError
		var invalidErr *diffimage.InvalidImageError
		var renderErr *diffimage.RenderError
		switch {
		case err == nil:
			comparisons.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "success")))
		case errors.As(err, &decodeErr), errors.As(err, &invalidErr):
			comparisons.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.As(err, &renderErr):
			comparisons.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "render_error")))
		default:
			comparisons.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "error")))
			logger.Error("failed to compare images", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		response := CompareResponse{
			ComparisonResult: result,
		}
		if err != nil {
			response.Error = err.Error()
		}
		if inline && result.DiffImagePath != "" {
			data, err := readAndRelease(r.Context(), storageClient, result.DiffImagePath)
			if err != nil {
				logger.Error("failed to read diff image", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			response.DiffData = base64.StdEncoding.EncodeToString(data)

			// The artifact is gone once it is inlined, so there is no path to report.
			released := *result
			released.DiffImagePath = ""
			response.ComparisonResult = &released
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}

// readAndRelease returns the artifact at path and deletes it from s. The
// artifact is deleted even when it cannot be read.
func readAndRelease(ctx context.Context, s storage.Storage, path string) ([]byte, error) {
	data, err := s.Get(ctx, path)
	if deleteErr := s.Delete(ctx, path); deleteErr != nil {
		myhttp.Logger(ctx).Warn("failed to delete diff image", "path", path, "error", deleteErr)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// saveUpload copies the form file field into directory and returns its path.
func saveUpload(r *http.Request, field string, directory string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", xerrors.Errorf("failed to read %s: %w", field, err)
	}
	defer file.Close()

	path := filepath.Join(directory, field+filepath.Ext(header.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", xerrors.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		return "", xerrors.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", xerrors.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
