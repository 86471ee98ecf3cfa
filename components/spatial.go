package components

import "math"

// Number is the set of numeric representations a Point can use.
type Number interface {
	~int | ~int32 | ~float32 | ~float64
}

// Point is a 2D coordinate. Integer points index grid cells, float points
// hold continuous sub-cell positions.
type Point[T Number] struct {
	X, Y T
}

// FPos is a continuous world position.
type FPos = Point[float64]

// IPos is a discrete grid cell coordinate.
type IPos = Point[int]

// Pt constructs a point.
func Pt[T Number](x, y T) Point[T] {
	return Point[T]{X: x, Y: y}
}

// Add returns p+q.
func (p Point[T]) Add(q Point[T]) Point[T] {
	return Point[T]{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point[T]) Sub(q Point[T]) Point[T] {
	return Point[T]{X: p.X - q.X, Y: p.Y - q.Y}
}

// DistSq returns the squared Euclidean distance to q.
func (p Point[T]) DistSq(q Point[T]) float64 {
	dx := float64(p.X) - float64(q.X)
	dy := float64(p.Y) - float64(q.Y)
	return dx*dx + dy*dy
}

// Dist returns the Euclidean distance to q.
func (p Point[T]) Dist(q Point[T]) float64 {
	return math.Sqrt(p.DistSq(q))
}

// ToFloat converts any point to a continuous position.
func ToFloat[T Number](p Point[T]) FPos {
	return FPos{X: float64(p.X), Y: float64(p.Y)}
}

// CellOf maps a continuous position to the grid cell containing it.
func CellOf(p FPos, cellSize float64) IPos {
	return IPos{
		X: int(math.Floor(p.X / cellSize)),
		Y: int(math.Floor(p.Y / cellSize)),
	}
}

// Rect is an axis-aligned area, Min inclusive and Max exclusive.
type Rect struct {
	Min, Max FPos
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p FPos) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Area returns Width*Height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// ToroidalDelta returns the shortest delta from a to b on a w×h torus.
func ToroidalDelta(a, b FPos, w, h float64) (dx, dy float64) {
	dx = b.X - a.X
	dy = b.Y - a.Y

	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}

	return dx, dy
}
