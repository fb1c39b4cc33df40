package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// LineStringFromXY builds a geom.LineString from [[x1,y1],[x2,y2],...].
func LineStringFromXY(coords [][]float64) (geom.LineString, error) {
	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	// Build coordinate sequence for LineString
	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// Vertices returns the XY vertices of a line string in order.
func Vertices(ls geom.LineString) []geom.XY {
	seq := ls.Coordinates()
	out := make([]geom.XY, seq.Length())
	for i := range out {
		out[i] = seq.GetXY(i)
	}
	return out
}

// DistanceToLine returns the planar distance between (x, y) and the line.
func DistanceToLine(ls geom.LineString, x, y float64) (float64, bool) {
	return geom.Distance(NewXYPoint(x, y).AsGeometry(), ls.AsGeometry())
}
