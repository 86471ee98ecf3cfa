// Package systems holds the simulation's ecological model: the environment
// of patches, plants and flowers, the pollinators foraging in it, their hives
// and the event scheduler that sequences delayed effects.
package systems

import (
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/evobee/components"
)

// gridEntry is a flower registered in the spatial grid.
type gridEntry struct {
	E   ecs.Entity
	ID  uint32
	Pos components.FPos
}

// FlowerGrid provides cell-based nearest and radius lookups over flowers.
type FlowerGrid struct {
	cellSize float64
	cols     int
	rows     int
	width    float64
	height   float64
	wrap     bool
	cells    [][]gridEntry
	count    int
}

// NewFlowerGrid creates a spatial grid covering a width×height area. With
// wrap set, distances are measured on a torus.
func NewFlowerGrid(width, height, cellSize float64, wrap bool) *FlowerGrid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]gridEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]gridEntry, 0, 4)
	}

	return &FlowerGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		width:    width,
		height:   height,
		wrap:     wrap,
		cells:    cells,
	}
}

// Len returns the number of registered flowers.
func (g *FlowerGrid) Len() int { return g.count }

// Insert registers a flower at pos.
func (g *FlowerGrid) Insert(e ecs.Entity, id uint32, pos components.FPos) {
	idx := g.cellIndex(pos)
	g.cells[idx] = append(g.cells[idx], gridEntry{E: e, ID: id, Pos: pos})
	g.count++
}

// Remove unregisters a flower. It reports whether the flower was found.
func (g *FlowerGrid) Remove(id uint32, pos components.FPos) bool {
	idx := g.cellIndex(pos)
	cell := g.cells[idx]
	for i := range cell {
		if cell[i].ID == id {
			g.cells[idx] = append(cell[:i], cell[i+1:]...)
			g.count--
			return true
		}
	}
	return false
}

// Distance returns the distance between two points, toroidal when wrapping.
func (g *FlowerGrid) Distance(a, b components.FPos) float64 {
	if g.wrap {
		dx, dy := components.ToroidalDelta(a, b, g.width, g.height)
		return math.Hypot(dx, dy)
	}
	return a.Dist(b)
}

// Nearest returns the closest flower to p accepted by keep, searching outward
// ring by ring. Equal distances resolve to the lowest flower ID. A maxDist of
// zero or less means unlimited.
func (g *FlowerGrid) Nearest(p components.FPos, maxDist float64, keep func(ecs.Entity) bool) (ecs.Entity, uint32, bool) {
	var (
		best     gridEntry
		bestDist = math.Inf(1)
		found    bool
	)

	center := g.cellCoord(p)
	maxRing := max(g.cols, g.rows)
	if g.wrap {
		maxRing = max(g.cols, g.rows)/2 + 1
	}

	for ring := 0; ring <= maxRing; ring++ {
		// Cells in this ring are at least (ring-1) cells away.
		ringMin := float64(ring-1) * g.cellSize
		if found && ringMin > bestDist {
			break
		}
		if maxDist > 0 && ringMin > maxDist {
			break
		}
		g.visitRing(center, ring, func(idx int) {
			for _, en := range g.cells[idx] {
				d := g.Distance(p, en.Pos)
				if maxDist > 0 && d > maxDist {
					continue
				}
				if d > bestDist || (d == bestDist && en.ID >= best.ID) {
					continue
				}
				if keep != nil && !keep(en.E) {
					continue
				}
				best, bestDist, found = en, d, true
			}
		})
	}
	return best.E, best.ID, found
}

// WithinRadius appends every flower within r of p to dst in ascending
// flower ID order.
func (g *FlowerGrid) WithinRadius(dst []ecs.Entity, p components.FPos, r float64) []ecs.Entity {
	hits := g.collect(p, r)
	for _, en := range hits {
		dst = append(dst, en.E)
	}
	return dst
}

func (g *FlowerGrid) collect(p components.FPos, r float64) []gridEntry {
	var hits []gridEntry
	cellRadius := int(math.Ceil(r/g.cellSize)) + 1
	center := g.cellCoord(p)

	cols := g.span(center.X, cellRadius, g.cols)
	rows := g.span(center.Y, cellRadius, g.rows)
	for _, row := range rows {
		for _, col := range cols {
			for _, en := range g.cells[row*g.cols+col] {
				if g.Distance(p, en.Pos) <= r {
					hits = append(hits, en)
				}
			}
		}
	}
	slices.SortFunc(hits, func(a, b gridEntry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return hits
}

// span lists the distinct cell indices within radius of c along one axis.
func (g *FlowerGrid) span(c, radius, n int) []int {
	if g.wrap && 2*radius+1 >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 2*radius+1)
	for d := -radius; d <= radius; d++ {
		i := c + d
		if g.wrap {
			i = ((i % n) + n) % n
		} else if i < 0 || i >= n {
			continue
		}
		out = append(out, i)
	}
	return out
}

// visitRing calls fn for every cell at Chebyshev distance ring from center.
func (g *FlowerGrid) visitRing(center components.IPos, ring int, fn func(idx int)) {
	visit := func(col, row int) {
		if g.wrap {
			col = ((col % g.cols) + g.cols) % g.cols
			row = ((row % g.rows) + g.rows) % g.rows
		} else if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
			return
		}
		fn(row*g.cols + col)
	}
	if ring == 0 {
		visit(center.X, center.Y)
		return
	}
	for d := -ring; d <= ring; d++ {
		visit(center.X+d, center.Y-ring)
		visit(center.X+d, center.Y+ring)
	}
	for d := -ring + 1; d <= ring-1; d++ {
		visit(center.X-ring, center.Y+d)
		visit(center.X+ring, center.Y+d)
	}
}

func (g *FlowerGrid) cellCoord(p components.FPos) components.IPos {
	c := components.CellOf(p, g.cellSize)
	c.X = min(max(c.X, 0), g.cols-1)
	c.Y = min(max(c.Y, 0), g.rows-1)
	return c
}

// cellIndex returns the flat index for a world position.
func (g *FlowerGrid) cellIndex(p components.FPos) int {
	c := g.cellCoord(p)
	return c.Y*g.cols + c.X
}
