package image

import (
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// maskFromRows builds a mask from rows of '#' (different) and '.' (same).
func maskFromRows(rows ...string) *DiffMask {
	mask := NewDiffMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				mask.Set(x, y, true)
			}
		}
	}
	return mask
}

func TestRegionExtractor_Extract(t *testing.T) {
	type in struct {
		mask *DiffMask
	}

	type want struct {
		regions []Region
	}

	tests := []struct {
		name     string
		receiver *RegionExtractor
		in       in
		want     want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					"....",
					"....",
				),
			},
			want{
				[]Region{},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					"....",
					"....",
					"..#.",
					"....",
				),
			},
			want{
				[]Region{{X: 2, Y: 2, Width: 1, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					"#..",
					".#.",
				),
			},
			want{
				[]Region{{X: 0, Y: 0, Width: 2, Height: 2}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(FourConnected),
			in{
				maskFromRows(
					"#..",
					".#.",
				),
			},
			want{
				[]Region{
					{X: 0, Y: 0, Width: 1, Height: 1},
					{X: 1, Y: 1, Width: 1, Height: 1},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(FourConnected),
			in{
				maskFromRows(
					"#.#",
					"#.#",
					"###",
				),
			},
			want{
				[]Region{{X: 0, Y: 0, Width: 3, Height: 3}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					"..#",
					"#..",
				),
			},
			want{
				[]Region{
					{X: 2, Y: 0, Width: 1, Height: 1},
					{X: 0, Y: 1, Width: 1, Height: 1},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					".#..",
					".#.#",
					"##.#",
				),
			},
			want{
				[]Region{
					{X: 0, Y: 0, Width: 2, Height: 3},
					{X: 3, Y: 1, Width: 1, Height: 2},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected),
			in{
				maskFromRows(
					"#.#.#",
					".#.#.",
				),
			},
			want{
				[]Region{{X: 0, Y: 0, Width: 5, Height: 2}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected).WithMergeDistance(2),
			in{
				maskFromRows(
					"#..#",
				),
			},
			want{
				[]Region{{X: 0, Y: 0, Width: 4, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			NewRegionExtractor(EightConnected).WithMergeDistance(1),
			in{
				maskFromRows(
					"#..#",
				),
			},
			want{
				[]Region{
					{X: 0, Y: 0, Width: 1, Height: 1},
					{X: 3, Y: 0, Width: 1, Height: 1},
				},
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := tt.receiver
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := receiver.Extract(in.mask)
			if diff := cmp.Diff(want.regions, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegionExtractor_RandomMasks(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for _, connectivity := range []Connectivity{FourConnected, EightConnected} {
		for i := 0; i < 20; i++ {
			mask := NewDiffMask(1+r.Intn(40), 1+r.Intn(40))
			density := r.Float64()
			for y := 0; y < mask.Height; y++ {
				for x := 0; x < mask.Width; x++ {
					if r.Float64() < density {
						mask.Set(x, y, true)
					}
				}
			}
			count := mask.Count()

			regions := NewRegionExtractor(connectivity).Extract(mask)

			if mask.Count() != count {
				t.Fatalf("extraction changed the mask count from %d to %d", count, mask.Count())
			}

			for _, region := range regions {
				if region.Width <= 0 || region.Height <= 0 {
					t.Fatalf("degenerate region %+v", region)
				}
				if !regionHasCell(mask, region) {
					t.Fatalf("region %+v contains no differing cell", region)
				}
			}

			for y := 0; y < mask.Height; y++ {
				for x := 0; x < mask.Width; x++ {
					if !mask.At(x, y) {
						continue
					}
					covered := false
					for _, region := range regions {
						if region.Contains(x, y) {
							covered = true
							break
						}
					}
					if !covered {
						t.Fatalf("cell (%d,%d) is not covered by any region", x, y)
					}
				}
			}
		}
	}
}

func regionHasCell(mask *DiffMask, region Region) bool {
	for y := region.Y; y < region.Y+region.Height; y++ {
		for x := region.X; x < region.X+region.Width; x++ {
			if mask.At(x, y) {
				return true
			}
		}
	}
	return false
}

func BenchmarkRegionExtractor_Extract(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	mask := NewDiffMask(1920, 1080)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if r.Intn(10) == 0 {
				mask.Set(x, y, true)
			}
		}
	}
	extractor := NewRegionExtractor(EightConnected)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractor.Extract(mask)
	}
}
