package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// DefaultChipSizeDeg is the side length of an AOI chip in degrees.
const DefaultChipSizeDeg = 0.2

// Chip partitions an oversized polygon into axis-aligned tiles of sideDeg
// degrees, each clipped to the original polygon. Tiles that do not intersect
// the polygon are dropped. The tile order is row-major from the south-west
// corner, which keeps the scatter sequence deterministic.
func Chip(p orb.Polygon, sideDeg float64) []orb.Polygon {
	if sideDeg <= 0 {
		sideDeg = DefaultChipSizeDeg
	}

	bound := p.Bound()
	minX := math.Floor(bound.Min[0]/sideDeg) * sideDeg
	minY := math.Floor(bound.Min[1]/sideDeg) * sideDeg

	var tiles []orb.Polygon
	for y := minY; y < bound.Max[1]; y += sideDeg {
		for x := minX; x < bound.Max[0]; x += sideDeg {
			tile := orb.Bound{
				Min: orb.Point{x, y},
				Max: orb.Point{x + sideDeg, y + sideDeg},
			}

			clipped := clip.Geometry(tile, p.Clone())
			if clipped == nil {
				continue
			}

			switch g := clipped.(type) {
			case orb.Polygon:
				if len(g) > 0 && len(g[0]) >= 4 {
					tiles = append(tiles, g)
				}
			case orb.MultiPolygon:
				for _, sub := range g {
					if len(sub) > 0 && len(sub[0]) >= 4 {
						tiles = append(tiles, sub)
					}
				}
			}
		}
	}

	return tiles
}
