package facematch

import "github.com/kozaktomas/photo-library/internal/faces"

// BoxIoU calculates Intersection over Union between two face boxes.
func BoxIoU(a, b faces.Rect) float64 {
	// Calculate intersection.
	x1 := max(a.Left, b.Left)
	y1 := max(a.Top, b.Top)
	x2 := min(a.Right, b.Right)
	y2 := min(a.Bottom, b.Bottom)

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := float64((x2 - x1) * (y2 - y1))

	// Calculate union.
	area1 := float64((a.Right - a.Left) * (a.Bottom - a.Top))
	area2 := float64((b.Right - b.Left) * (b.Bottom - b.Top))
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// DedupeBoxes drops boxes that overlap an earlier kept box with an IoU above
// threshold, so one face yields at most one appearance. Order is preserved.
func DedupeBoxes(rects []faces.Rect, threshold float64) []faces.Rect {
	kept := make([]faces.Rect, 0, len(rects))
outer:
	for _, r := range rects {
		for _, k := range kept {
			if BoxIoU(r, k) > threshold {
				continue outer
			}
		}
		kept = append(kept, r)
	}
	return kept
}
