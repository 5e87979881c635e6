package geospatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FarmIDProperty is the feature property that links a boundary to a farm record
const FarmIDProperty = "farm_id"

// ErrNoBoundaries is returned when a collection holds no polygonal features
var ErrNoBoundaries = errors.New("no farm boundaries in feature collection")

// Boundary is one surveyed farm polygon
type Boundary struct {
	FarmID     string
	Geometry   orb.Geometry
	AreaHa     float64
	Centroid   orb.Point
	Properties geojson.Properties
}

// Overlap is a pair of boundaries whose polygons share area. Indexes refer
// to the slice passed to FindOverlaps.
type Overlap struct {
	IndexA int    `json:"index_a"`
	FarmA  string `json:"farm_a,omitempty"`
	IndexB int    `json:"index_b"`
	FarmB  string `json:"farm_b,omitempty"`
}

// Statistics summarizes a set of boundaries
type Statistics struct {
	BoundaryCount int        `json:"boundary_count"`
	TotalAreaHa   float64    `json:"total_area_ha"`
	MeanAreaHa    float64    `json:"mean_area_ha"`
	MinAreaHa     float64    `json:"min_area_ha"`
	MaxAreaHa     float64    `json:"max_area_ha"`
	Bounds        [4]float64 `json:"bounds"` // min lon, min lat, max lon, max lat
	Overlaps      []Overlap  `json:"overlaps,omitempty"`
}

// LoadBoundaries parses a GeoJSON FeatureCollection into farm boundaries.
// Non-polygonal features are skipped.
func LoadBoundaries(data []byte) ([]Boundary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("invalid boundary collection: %w", err)
	}

	boundaries := make([]Boundary, 0, len(fc.Features))
	for _, feature := range fc.Features {
		if !isPolygonal(feature.Geometry) {
			continue
		}
		boundaries = append(boundaries, Boundary{
			FarmID:     farmID(feature.Properties),
			Geometry:   feature.Geometry,
			AreaHa:     ConvertToHectares(CalculateArea(feature.Geometry)),
			Centroid:   CalculateCentroid(feature.Geometry),
			Properties: feature.Properties.Clone(),
		})
	}

	if len(boundaries) == 0 {
		return nil, ErrNoBoundaries
	}
	return boundaries, nil
}

// CalculateArea calculates the area in square meters for a geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return math.Abs(geo.Area(geometry))
}

// CalculateCentroid calculates the centroid of a geometry
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// CheckOverlap reports whether two polygonal geometries share area.
// Polygons meeting only along an edge or at a corner do not overlap.
func CheckOverlap(g1, g2 orb.Geometry) bool {
	if !g1.Bound().Intersects(g2.Bound()) {
		return false
	}
	r1, r2 := rings(g1), rings(g2)
	if len(r1) == 0 || len(r2) == 0 {
		return false
	}

	for _, ring := range r1 {
		for _, p := range ring {
			if strictlyInside(g2, r2, p) {
				return true
			}
		}
	}
	for _, ring := range r2 {
		for _, p := range ring {
			if strictlyInside(g1, r1, p) {
				return true
			}
		}
	}
	if edgesCross(r1, r2) {
		return true
	}
	// identical or nested outlines have no vertex strictly inside the other
	return strictlyInside(g2, r2, CalculateCentroid(g1)) || strictlyInside(g1, r1, CalculateCentroid(g2))
}

// FindOverlaps returns every pair of boundaries that share area
func FindOverlaps(boundaries []Boundary) []Overlap {
	var overlaps []Overlap
	for i := range boundaries {
		for j := i + 1; j < len(boundaries); j++ {
			if CheckOverlap(boundaries[i].Geometry, boundaries[j].Geometry) {
				overlaps = append(overlaps, Overlap{
					IndexA: i,
					FarmA:  boundaries[i].FarmID,
					IndexB: j,
					FarmB:  boundaries[j].FarmID,
				})
			}
		}
	}
	return overlaps
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}

// AreaByFarm returns the surveyed area of each identified farm in hectares.
// Several polygons for the same farm are summed.
func AreaByFarm(boundaries []Boundary) map[string]float64 {
	areas := make(map[string]float64)
	for _, b := range boundaries {
		if b.FarmID == "" {
			continue
		}
		areas[b.FarmID] += b.AreaHa
	}
	return areas
}

// WithinRadius returns the boundaries that contain center or whose centroid
// lies within radiusKm of it
func WithinRadius(boundaries []Boundary, center orb.Point, radiusKm float64) []Boundary {
	meters := radiusKm * 1000
	search := geo.NewBoundAroundPoint(center, meters)

	var found []Boundary
	for _, b := range boundaries {
		if !search.Intersects(b.Geometry.Bound()) {
			continue
		}
		if contains(b.Geometry, center) || geo.DistanceHaversine(center, b.Centroid) <= meters {
			found = append(found, b)
		}
	}
	return found
}

// ComputeStatistics summarizes boundary areas, the overall extent and any
// overlapping pairs
func ComputeStatistics(boundaries []Boundary) Statistics {
	stats := Statistics{BoundaryCount: len(boundaries)}
	if len(boundaries) == 0 {
		return stats
	}

	extent := boundaries[0].Geometry.Bound()
	stats.MinAreaHa = boundaries[0].AreaHa
	stats.MaxAreaHa = boundaries[0].AreaHa
	for _, b := range boundaries {
		stats.TotalAreaHa += b.AreaHa
		stats.MinAreaHa = math.Min(stats.MinAreaHa, b.AreaHa)
		stats.MaxAreaHa = math.Max(stats.MaxAreaHa, b.AreaHa)
		extent = extent.Union(b.Geometry.Bound())
	}
	stats.MeanAreaHa = stats.TotalAreaHa / float64(len(boundaries))
	stats.Bounds = [4]float64{extent.Min.Lon(), extent.Min.Lat(), extent.Max.Lon(), extent.Max.Lat()}
	stats.Overlaps = FindOverlaps(boundaries)
	return stats
}

// FeatureCollection renders boundaries back to GeoJSON. Source properties
// are kept and the computed area is attached as area_ha.
func FeatureCollection(boundaries []Boundary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range boundaries {
		feature := geojson.NewFeature(b.Geometry)
		for k, v := range b.Properties {
			feature.Properties[k] = v
		}
		if _, ok := feature.Properties[FarmIDProperty]; !ok && b.FarmID != "" {
			feature.Properties[FarmIDProperty] = b.FarmID
		}
		feature.Properties["area_ha"] = b.AreaHa
		fc.Append(feature)
	}
	return fc
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	}
	return false
}

func rings(g orb.Geometry) []orb.Ring {
	switch geom := g.(type) {
	case orb.Polygon:
		return geom
	case orb.MultiPolygon:
		var all []orb.Ring
		for _, p := range geom {
			all = append(all, p...)
		}
		return all
	}
	return nil
}

// strictlyInside excludes points lying on any ring of g
func strictlyInside(g orb.Geometry, rs []orb.Ring, p orb.Point) bool {
	if !contains(g, p) {
		return false
	}
	for _, ring := range rs {
		for i := 1; i < len(ring); i++ {
			if onSegment(p, ring[i-1], ring[i]) {
				return false
			}
		}
	}
	return true
}

// edgesCross reports a proper crossing between any edge of r1 and any edge of r2
func edgesCross(r1, r2 []orb.Ring) bool {
	for _, a := range r1 {
		for i := 1; i < len(a); i++ {
			for _, b := range r2 {
				for j := 1; j < len(b); j++ {
					if segmentsCross(a[i-1], a[i], b[j-1], b[j]) {
						return true
					}
				}
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := orientation(c, d, a)
	d2 := orientation(c, d, b)
	d3 := orientation(a, b, c)
	d4 := orientation(a, b, d)
	return d1*d2 < 0 && d3*d4 < 0
}

func onSegment(p, a, b orb.Point) bool {
	if orientation(a, b, p) != 0 {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func farmID(props geojson.Properties) string {
	v, ok := props[FarmIDProperty]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%g", id)
	default:
		return fmt.Sprint(id)
	}
}
