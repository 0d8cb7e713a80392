package image

type Connectivity int

const (
	FourConnected  Connectivity = 4
	EightConnected Connectivity = 8
)

// RegionExtractor groups the true cells of a DiffMask into connected
// components and reduces each one to its bounding box.
type RegionExtractor struct {
	connectivity  Connectivity
	mergeDistance int
}

func NewRegionExtractor(connectivity Connectivity) *RegionExtractor {
	return &RegionExtractor{
		connectivity: connectivity,
	}
}

// WithMergeDistance returns an extractor that additionally combines boxes
// lying within distance pixels of each other. Zero disables merging.
func (r *RegionExtractor) WithMergeDistance(distance int) *RegionExtractor {
	return &RegionExtractor{
		connectivity:  r.connectivity,
		mergeDistance: distance,
	}
}

// Extract returns one region per component, ordered by the raster position of
// each component's first cell.
func (r *RegionExtractor) Extract(mask *DiffMask) []Region {
	regions := make([]Region, 0)
	if mask.Count() == 0 {
		return regions
	}

	width := mask.Width
	height := mask.Height

	// Pass 1: provisional labels. Label 0 is background; parent[0] is unused.
	labels := make([]int32, width*height)
	parent := []int32{0}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if !mask.cells[i] {
				continue
			}

			var label int32
			neighbors, n := r.previousNeighbors(x, y, width)
			for _, j := range neighbors[:n] {
				neighbor := labels[j]
				if neighbor == 0 {
					continue
				}
				if label == 0 {
					label = find(parent, neighbor)
				} else {
					label = union(parent, label, neighbor)
				}
			}

			if label == 0 {
				label = int32(len(parent))
				parent = append(parent, label)
			}
			labels[i] = label
		}
	}

	// Pass 2: resolve roots and grow one box per root.
	index := make([]int, len(parent))
	for i := range index {
		index[i] = -1
	}

	type box struct {
		minX, minY, maxX, maxY int
	}
	var boxes []box

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			label := labels[y*width+x]
			if label == 0 {
				continue
			}

			root := find(parent, label)
			k := index[root]
			if k < 0 {
				index[root] = len(boxes)
				boxes = append(boxes, box{x, y, x, y})
				continue
			}

			b := &boxes[k]
			if x < b.minX {
				b.minX = x
			}
			if x > b.maxX {
				b.maxX = x
			}
			if y > b.maxY {
				b.maxY = y
			}
		}
	}

	for _, b := range boxes {
		regions = append(regions, Region{
			X:      b.minX,
			Y:      b.minY,
			Width:  b.maxX - b.minX + 1,
			Height: b.maxY - b.minY + 1,
		})
	}

	if r.mergeDistance > 0 {
		return r.mergeRectangles(regions)
	}
	return regions
}

// previousNeighbors lists the already-scanned neighbours of (x, y): west and
// north, plus north-west and north-east under 8-connectivity.
func (r *RegionExtractor) previousNeighbors(x int, y int, width int) ([4]int, int) {
	var neighbors [4]int
	n := 0
	if x > 0 {
		neighbors[n] = y*width + x - 1
		n++
	}
	if y > 0 {
		above := (y - 1) * width
		neighbors[n] = above + x
		n++
		if r.connectivity == EightConnected {
			if x > 0 {
				neighbors[n] = above + x - 1
				n++
			}
			if x < width-1 {
				neighbors[n] = above + x + 1
				n++
			}
		}
	}
	return neighbors, n
}

func find(parent []int32, label int32) int32 {
	root := label
	for parent[root] != root {
		root = parent[root]
	}
	for parent[label] != root {
		next := parent[label]
		parent[label] = root
		label = next
	}
	return root
}

// union keeps the smaller root so that labels stay stable in scan order.
func union(parent []int32, a int32, b int32) int32 {
	rootA := find(parent, a)
	rootB := find(parent, b)
	if rootA == rootB {
		return rootA
	}
	if rootA < rootB {
		parent[rootB] = rootA
		return rootA
	}
	parent[rootA] = rootB
	return rootB
}

func (r *RegionExtractor) mergeRectangles(rects []Region) []Region {
	if len(rects) <= 1 {
		return rects
	}

	merged := make([]Region, 0)
	used := make([]bool, len(rects))

	for i := 0; i < len(rects); i++ {
		if used[i] {
			continue
		}

		current := rects[i]
		mergedAny := true

		for mergedAny {
			mergedAny = false
			for j := i + 1; j < len(rects); j++ {
				if used[j] {
					continue
				}

				if rectanglesOverlap(current, rects[j]) || rectanglesClose(current, rects[j], r.mergeDistance) {
					current = combineRectangles(current, rects[j])
					used[j] = true
					mergedAny = true
				}
			}
		}

		merged = append(merged, current)
	}

	return merged
}

func rectanglesOverlap(r1 Region, r2 Region) bool {
	return !(r1.X+r1.Width <= r2.X || r2.X+r2.Width <= r1.X ||
		r1.Y+r1.Height <= r2.Y || r2.Y+r2.Height <= r1.Y)
}

func rectanglesClose(r1 Region, r2 Region, distance int) bool {
	return rectanglesOverlap(expand(r1, distance), expand(r2, distance))
}

func expand(r Region, by int) Region {
	return Region{
		X:      r.X - by,
		Y:      r.Y - by,
		Width:  r.Width + 2*by,
		Height: r.Height + 2*by,
	}
}

func combineRectangles(r1 Region, r2 Region) Region {
	minX := min(r1.X, r2.X)
	minY := min(r1.Y, r2.Y)
	maxX := max(r1.X+r1.Width, r2.X+r2.Width)
	maxY := max(r1.Y+r1.Height, r2.Y+r2.Height)

	return Region{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}
