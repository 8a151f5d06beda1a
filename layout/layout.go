// Package layout turns the flat word stream produced by an OCR engine into
// lines and paragraphs using spatial heuristics: words that sit close together
// and share a similar glyph height belong to the same line, and lines that
// stack tightly with a common left edge belong to the same paragraph.
package layout

import (
	"sort"
	"strings"

	"github.com/wudi/ocrkit/geo"
	"github.com/wudi/ocrkit/ocr"
)

// Region is a grouped run of recognized text with its covering bounds.
type Region struct {
	Bounds     geo.Region
	Text       string
	Confidence float64
	// Words counts the recognized tokens merged into this region.
	Words int
}

// Thresholds tune the grouping heuristics. All values are pixel distances in
// the coordinate space of the recognized image.
type Thresholds struct {
	// XGap is the maximum horizontal distance between the right edge of a
	// group and the left edge of the next word for them to merge.
	XGap float64
	// YGap is the maximum difference between top edges for words to be
	// considered part of the same line run.
	YGap float64
	// FontDelta is the maximum difference in box height for two runs to count
	// as the same font size.
	FontDelta float64
	// ParagraphYGap is the maximum distance between the bottom edge of a
	// paragraph and the top edge of a line for the line to join it.
	ParagraphYGap float64
	// ParagraphXIndent is the maximum left-edge offset for a line to join a
	// paragraph.
	ParagraphXIndent float64
}

// DefaultThresholds returns the tuning that works well for screenshots and
// document photos at half scale.
func DefaultThresholds() Thresholds {
	return Thresholds{
		XGap:             50,
		YGap:             90,
		FontDelta:        10,
		ParagraphYGap:    5,
		ParagraphXIndent: 47,
	}
}

// Scale returns a copy of the thresholds with every distance multiplied by f,
// for matching images recognized at a different scale.
func (t Thresholds) Scale(f float64) Thresholds {
	return Thresholds{
		XGap:             t.XGap * f,
		YGap:             t.YGap * f,
		FontDelta:        t.FontDelta * f,
		ParagraphYGap:    t.ParagraphYGap * f,
		ParagraphXIndent: t.ParagraphXIndent * f,
	}
}

// GroupWords merges adjacent words into line runs. Words are first sorted into
// reading order (top edge, then left edge); each word then either extends the
// previous run or starts a new one. The output preserves that order.
func GroupWords(words []ocr.TextWord, th Thresholds) []Region {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]ocr.TextWord, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Bounds.Y != sorted[j].Bounds.Y {
			return sorted[i].Bounds.Y < sorted[j].Bounds.Y
		}
		return sorted[i].Bounds.X < sorted[j].Bounds.X
	})

	var groups []Region
	for _, w := range sorted {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		if len(groups) > 0 && nearby(groups[len(groups)-1], w, th) {
			merge(&groups[len(groups)-1], text, w.Bounds, w.Confidence, 1)
			continue
		}
		groups = append(groups, Region{
			Bounds:     w.Bounds,
			Text:       text,
			Confidence: w.Confidence,
			Words:      1,
		})
	}
	return groups
}

// nearby reports whether word w should extend group g: close on the x axis,
// top edges roughly aligned, and similar glyph height.
func nearby(g Region, w ocr.TextWord, th Thresholds) bool {
	xDist := abs(w.Bounds.X - g.Bounds.MaxX())
	yDist := abs(w.Bounds.Y - g.Bounds.Y)
	fontSimilar := abs(g.Bounds.Height-w.Bounds.Height) < th.FontDelta
	return xDist < th.XGap && yDist < th.YGap && fontSimilar
}

// MergeParagraphs folds line runs into paragraphs. A run joins the first
// earlier paragraph whose bottom edge is within ParagraphYGap of the run's top
// edge and whose left edge is within ParagraphXIndent.
func MergeParagraphs(regions []Region, th Thresholds) []Region {
	if len(regions) == 0 {
		return nil
	}
	paragraphs := []Region{regions[0]}
	for _, r := range regions[1:] {
		merged := false
		for i := range paragraphs {
			if stackable(paragraphs[i], r, th) {
				merge(&paragraphs[i], r.Text, r.Bounds, r.Confidence, r.Words)
				merged = true
				break
			}
		}
		if !merged {
			paragraphs = append(paragraphs, r)
		}
	}
	return paragraphs
}

// stackable reports whether line r continues paragraph p.
func stackable(p, r Region, th Thresholds) bool {
	yDist := abs(r.Bounds.Y - p.Bounds.MaxY())
	xDist := abs(r.Bounds.X - p.Bounds.X)
	return yDist < th.ParagraphYGap && xDist < th.ParagraphXIndent
}

// RegionAt returns the first region containing the point (x, y). The boolean
// is false when no region contains the point.
func RegionAt(regions []Region, x, y float64) (Region, bool) {
	for _, r := range regions {
		if r.Bounds.Contains(x, y) {
			return r, true
		}
	}
	return Region{}, false
}

// SortReadingOrder sorts regions in place by top edge, then left edge.
func SortReadingOrder(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Bounds.Y != regions[j].Bounds.Y {
			return regions[i].Bounds.Y < regions[j].Bounds.Y
		}
		return regions[i].Bounds.X < regions[j].Bounds.X
	})
}

// Scale maps every region's bounds by f, for converting between recognition
// and source coordinates.
func Scale(regions []Region, f float64) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		r.Bounds = r.Bounds.Scale(f)
		out[i] = r
	}
	return out
}

// merge extends region g with text and bounds, keeping a word-count weighted
// confidence.
func merge(g *Region, text string, bounds geo.Region, confidence float64, words int) {
	if words < 1 {
		words = 1
	}
	g.Text = g.Text + " " + text
	g.Bounds = g.Bounds.Union(bounds)
	g.Confidence = (g.Confidence*float64(g.Words) + confidence*float64(words)) / float64(g.Words+words)
	g.Words += words
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
