package network

import (
	"math"

	"github.com/azurexth/LimSim/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Road is a two-way road segment between two nodes. Its reference line runs
// from From to To; vehicles with direction +1 drive along it on the right,
// vehicles with direction -1 drive against it on the left.
type Road struct {
	ID        string
	From      string
	To        string
	Lanes     int     // lanes per direction
	LaneWidth float64 // metres

	Line   geom.LineString
	Length float64

	vertices []geom.XY
	cum      []float64
}

func newRoad(id, from, to string, lanes int, laneWidth float64, line geom.LineString) *Road {
	r := &Road{
		ID:        id,
		From:      from,
		To:        to,
		Lanes:     lanes,
		LaneWidth: laneWidth,
		Line:      line,
		vertices:  geo.Vertices(line),
	}
	r.cum = make([]float64, len(r.vertices))
	for i := 1; i < len(r.vertices); i++ {
		a, b := r.vertices[i-1], r.vertices[i]
		r.cum[i] = r.cum[i-1] + math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	r.Length = r.cum[len(r.cum)-1]
	return r
}

// HalfWidth is the lateral extent on each side of the reference line.
func (r *Road) HalfWidth() float64 {
	return float64(r.Lanes) * r.LaneWidth
}

// LaneOffset returns the lateral offset of the first lane in the given
// direction.
func (r *Road) LaneOffset(direction int) float64 {
	if direction < 0 {
		return r.LaneWidth / 2
	}
	return -r.LaneWidth / 2
}

// Project returns the curvilinear coordinates of (x, y) relative to the
// reference line: s along the line and t to the left of it.
func (r *Road) Project(x, y float64) (s, t float64) {
	best := math.Inf(1)
	for i := 1; i < len(r.vertices); i++ {
		a, b := r.vertices[i-1], r.vertices[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		seg := dx*dx + dy*dy
		if seg == 0 {
			continue
		}
		u := ((x-a.X)*dx + (y-a.Y)*dy) / seg
		u = math.Max(0, math.Min(1, u))
		cx, cy := a.X+u*dx, a.Y+u*dy
		d := math.Hypot(x-cx, y-cy)
		if d < best {
			best = d
			s = r.cum[i-1] + u*math.Sqrt(seg)
			if dx*(y-a.Y)-dy*(x-a.X) < 0 {
				t = -d
			} else {
				t = d
			}
		}
	}
	return s, t
}

// Locate converts curvilinear coordinates to a Cartesian point and the
// heading of the reference line there. s is clamped to the road.
func (r *Road) Locate(s, t float64) (x, y, heading float64) {
	s = math.Max(0, math.Min(r.Length, s))

	i := 1
	for i < len(r.cum)-1 && r.cum[i] < s {
		i++
	}
	a, b := r.vertices[i-1], r.vertices[i]
	segLen := r.cum[i] - r.cum[i-1]
	heading = math.Atan2(b.Y-a.Y, b.X-a.X)

	u := 0.0
	if segLen > 0 {
		u = (s - r.cum[i-1]) / segLen
	}
	x = a.X + u*(b.X-a.X) - math.Sin(heading)*t
	y = a.Y + u*(b.Y-a.Y) + math.Cos(heading)*t
	return x, y, heading
}

// Contains reports whether (x, y) lies on the road surface.
func (r *Road) Contains(x, y float64) bool {
	d, ok := geo.DistanceToLine(r.Line, x, y)
	return ok && d <= r.HalfWidth()
}
