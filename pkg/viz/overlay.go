// Package viz renders the debug overlay: every sampled trajectory drawn
// over the latest camera frame, colored by whether field correction was
// active.
package viz

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-explore/pkg/model"
)

const (
	pixelsPerMeter    = 3.0
	lateralScale      = 1.0
	robotSymbolLength = 10
	lineThickness     = 2
)

// Colors follow the original overlay encoding: green/yellow when sampling
// ran uncorrected, blue/purple when field correction was active.
var (
	robotColor = color.RGBA{R: 255, G: 0, B: 0}

	primaryColor = color.RGBA{G: 255}
	sampleColor  = color.RGBA{R: 255, G: 200}
	primaryCorr  = color.RGBA{B: 255}
	sampleCorr   = color.RGBA{R: 180, B: 255}
)

// trajectoryPixels accumulates the displacement steps of trajectory i into
// overlay pixel coordinates, starting at the robot anchor (cx, cy).
// Forward motion goes up the image, lateral motion goes left/right.
func trajectoryPixels(b model.Batch, i, cx, cy int) []image.Point {
	pts := make([]image.Point, 0, b.Steps+1)
	pts = append(pts, image.Pt(cx, cy))

	accX, accY := 0.0, 0.0
	for j := 0; j < b.Steps; j++ {
		dx, dy := b.At(i, j)
		accX += dx
		accY += dy
		px := cx - int(accY*pixelsPerMeter*lateralScale)
		py := cy - int(accX*pixelsPerMeter)
		pts = append(pts, image.Pt(px, py))
	}
	return pts
}

// Render draws the trajectory batch over the frame and re-encodes it as
// JPEG. corrected selects the color encoding.
func Render(frameJPEG []byte, batch model.Batch, corrected bool) ([]byte, error) {
	img, err := gocv.IMDecode(frameJPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	cx := img.Cols() / 2
	cy := int(float64(img.Rows()) * 0.95)

	// Robot anchor cross.
	gocv.Line(&img, image.Pt(cx-robotSymbolLength, cy), image.Pt(cx+robotSymbolLength, cy), robotColor, lineThickness)
	gocv.Line(&img, image.Pt(cx, cy-robotSymbolLength), image.Pt(cx, cy+robotSymbolLength), robotColor, lineThickness)

	for i := 0; i < batch.Samples; i++ {
		pts := trajectoryPixels(batch, i, cx, cy)
		clr := trajectoryColor(i, corrected)
		for k := 1; k < len(pts); k++ {
			gocv.Line(&img, pts[k-1], pts[k], clr, lineThickness)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func trajectoryColor(i int, corrected bool) color.RGBA {
	switch {
	case corrected && i == 0:
		return primaryCorr
	case corrected:
		return sampleCorr
	case i == 0:
		return primaryColor
	default:
		return sampleColor
	}
}
