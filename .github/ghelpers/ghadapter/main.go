package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	diffimage "visual-diff/internal/diff/image"
	"visual-diff/internal/env"

	"golang.org/x/xerrors"
)

// ghadapter runs a diff command and publishes its result as GitHub Actions
// step outputs. With MIN_MATCH_PERCENTAGE set it fails the step when the
// images match less than that.
func main() {
	if len(os.Args) < 2 {
		os.Exit(1)
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	cmd := exec.Command(os.Args[1], args...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		os.Exit(1)
	}

	var result diffimage.ComparisonResult
	if err := json.Unmarshal(output, &result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse result: %v\n", err)
		os.Exit(1)
	}

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		if err := appendOutputs(githubOutput, &result); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	minimum, ok, err := env.Lookup[float64]("MIN_MATCH_PERCENTAGE")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if ok && result.MatchPercentage < minimum {
		fmt.Fprintf(os.Stderr, "match %.4f%% is below %.4f%%\n", result.MatchPercentage, minimum)
		os.Exit(1)
	}
}

// appendOutputs appends the step outputs to the file at path. The file is
// closed before returning since the caller may exit right after.
func appendOutputs(path string, result *diffimage.ComparisonResult) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return xerrors.Errorf("failed to open %s: %w", path, err)
	}

	if err := writeOutputs(f, result); err != nil {
		_ = f.Close()
		return xerrors.Errorf("failed to write outputs: %w", err)
	}
	if err := f.Close(); err != nil {
		return xerrors.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func writeOutputs(w io.Writer, result *diffimage.ComparisonResult) error {
	outputs := []struct {
		key   string
		value string
	}{
		{"match_percentage", strconv.FormatFloat(result.MatchPercentage, 'f', -1, 64)},
		{"diff_percentage", strconv.FormatFloat(result.DiffPercentage, 'f', -1, 64)},
		{"diff_pixel_count", strconv.Itoa(result.DiffPixelCount)},
		{"diff_region_count", strconv.Itoa(len(result.DiffRegions))},
		{"diff_image_path", result.DiffImagePath},
	}
	for _, o := range outputs {
		if _, err := fmt.Fprintf(w, "%s=%s\n", o.key, o.value); err != nil {
			return err
		}
	}
	return nil
}
