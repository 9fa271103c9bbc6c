// Package picking turns screen-space picks into world-space terrain hits.
package picking

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/VoidMesh/worldstream/internal/logging"
)

var (
	// ErrInvalidPick rejects non-finite pick coordinates and empty viewports.
	ErrInvalidPick = errors.New("invalid pick")
	// ErrDegenerateProjection means view*proj cannot be inverted or maps the
	// pick to a point at infinity.
	ErrDegenerateProjection = errors.New("degenerate view-projection")
)

// HeightField is the terrain the resolver intersects.
type HeightField interface {
	HeightAt(x, z float64) (float32, error)
}

// Bounded is implemented by height fields that know their highest point. The
// resolver uses it to skip empty space above the terrain.
type Bounded interface {
	MaxHeight() float64
}

// Options bound the ray march.
type Options struct {
	StepSize      float64
	MaxDistance   float64
	Tolerance     float64
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{
		StepSize:      0.5,
		MaxDistance:   1000,
		Tolerance:     1e-3,
		MaxIterations: 32,
	}
}

// Ray is a world-space ray with a unit direction.
type Ray struct {
	Origin    mgl32.Vec3 `json:"origin"`
	Direction mgl32.Vec3 `json:"direction"`
}

// Hit is a resolved intersection.
type Hit struct {
	Point      mgl32.Vec3 `json:"point"`
	Distance   float32    `json:"distance"`
	Ray        Ray        `json:"ray"`
	Iterations int        `json:"iterations"`
}

type ray64 struct {
	origin    mgl64.Vec3
	direction mgl64.Vec3
}

func (r ray64) at(t float64) mgl64.Vec3 {
	return r.origin.Add(r.direction.Mul(t))
}

func (r ray64) export() Ray {
	return Ray{Origin: vec32(r.origin), Direction: vec32(r.direction)}
}

// Resolver intersects pick rays with a height field.
type Resolver struct {
	field  HeightField
	opts   Options
	logger *log.Logger
}

func NewResolver(field HeightField, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.StepSize <= 0 {
		opts.StepSize = def.StepSize
	}
	if opts.MaxDistance <= 0 || math.IsInf(opts.MaxDistance, 0) || math.IsNaN(opts.MaxDistance) {
		opts.MaxDistance = def.MaxDistance
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	return &Resolver{
		field:  field,
		opts:   opts,
		logger: logging.WithComponent("picking"),
	}
}

func (r *Resolver) Options() Options {
	return r.opts
}

// ScreenToNDC maps pixel (px, py), with y growing downwards, to normalized
// device coordinates, with y growing upwards.
func ScreenToNDC(px, py, width, height float64) (float32, float32, error) {
	if !finite(px) || !finite(py) || !finite(width) || !finite(height) || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: pixel (%v, %v) in %vx%v viewport", ErrInvalidPick, px, py, width, height)
	}
	ndcX := 2*px/width - 1
	ndcY := 1 - 2*py/height
	return float32(ndcX), float32(ndcY), nil
}

// Unproject builds the world-space ray through NDC (ndcX, ndcY) by inverting
// proj*view and unprojecting the near (z=-1) and far (z=+1) clip points with
// a perspective divide.
func Unproject(ndcX, ndcY float32, view, proj mgl32.Mat4) (Ray, error) {
	r, err := unproject(float64(ndcX), float64(ndcY), view, proj)
	if err != nil {
		return Ray{}, err
	}
	return r.export(), nil
}

func unproject(ndcX, ndcY float64, view, proj mgl32.Mat4) (ray64, error) {
	if !finite(ndcX) || !finite(ndcY) {
		return ray64{}, fmt.Errorf("%w: ndc (%v, %v)", ErrInvalidPick, ndcX, ndcY)
	}

	vp := mat64(proj).Mul4(mat64(view))
	det := vp.Det()
	if det == 0 || !finite(det) {
		return ray64{}, fmt.Errorf("%w: determinant %v", ErrDegenerateProjection, det)
	}
	inv := vp.Inv()

	near, ok := divide(inv.Mul4x1(mgl64.Vec4{ndcX, ndcY, -1, 1}))
	if !ok {
		return ray64{}, fmt.Errorf("%w: near point at infinity", ErrDegenerateProjection)
	}
	far, ok := divide(inv.Mul4x1(mgl64.Vec4{ndcX, ndcY, 1, 1}))
	if !ok {
		return ray64{}, fmt.Errorf("%w: far point at infinity", ErrDegenerateProjection)
	}

	dir := far.Sub(near)
	length := dir.Len()
	if length == 0 || !finite(length) {
		return ray64{}, fmt.Errorf("%w: near and far points coincide", ErrDegenerateProjection)
	}
	return ray64{origin: near, direction: dir.Mul(1 / length)}, nil
}

// divide applies the homogeneous divide.
func divide(v mgl64.Vec4) (mgl64.Vec3, bool) {
	w := v.W()
	if math.Abs(w) < 1e-12 || !finite(w) {
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{v.X() / w, v.Y() / w, v.Z() / w}, true
}

// Resolve unprojects NDC (ndcX, ndcY) and intersects the ray with the
// terrain. A miss is (Hit{}, false, nil).
func (r *Resolver) Resolve(ndcX, ndcY float32, view, proj mgl32.Mat4) (Hit, bool, error) {
	ray, err := unproject(float64(ndcX), float64(ndcY), view, proj)
	if err != nil {
		return Hit{}, false, err
	}
	return r.intersect(ray)
}

// ResolveScreen is Resolve for a pixel position in a width x height viewport.
func (r *Resolver) ResolveScreen(px, py, width, height float64, view, proj mgl32.Mat4) (Hit, bool, error) {
	ndcX, ndcY, err := ScreenToNDC(px, py, width, height)
	if err != nil {
		return Hit{}, false, err
	}
	return r.Resolve(ndcX, ndcY, view, proj)
}

// Intersect marches an arbitrary ray against the terrain. The direction does
// not need to be normalized.
func (r *Resolver) Intersect(ray Ray) (Hit, bool, error) {
	o, d := vec64(ray.Origin), vec64(ray.Direction)
	if !finiteVec(o) || !finiteVec(d) || d.Len() == 0 {
		return Hit{}, false, fmt.Errorf("%w: ray %v -> %v", ErrInvalidPick, ray.Origin, ray.Direction)
	}
	return r.intersect(ray64{origin: o, direction: d.Normalize()})
}

func (r *Resolver) intersect(ray ray64) (Hit, bool, error) {
	start := 0.0
	maxH := math.Inf(1)
	if b, ok := r.field.(Bounded); ok {
		maxH = b.MaxHeight()
	}

	// Nothing to hit above the highest terrain: skip ahead to where the ray
	// descends through maxH, or give up if it never does.
	if oy := ray.origin.Y(); oy > maxH {
		dy := ray.direction.Y()
		if dy >= 0 {
			return Hit{}, false, nil
		}
		start = (oy - maxH) / -dy
		if start > r.opts.MaxDistance {
			return Hit{}, false, nil
		}
	}

	prevT := start
	prevGap, err := r.gap(ray, prevT)
	if err != nil {
		return Hit{}, false, err
	}
	if prevGap <= 0 {
		return r.hit(ray, prevT, 0), true, nil
	}

	steps := int(math.Ceil((r.opts.MaxDistance - start) / r.opts.StepSize))
	for i := 1; i <= steps; i++ {
		t := math.Min(start+float64(i)*r.opts.StepSize, r.opts.MaxDistance)
		gap, err := r.gap(ray, t)
		if err != nil {
			return Hit{}, false, err
		}
		if gap <= 0 {
			return r.refine(ray, prevT, t)
		}
		if ray.direction.Y() >= 0 && ray.at(t).Y() > maxH {
			break
		}
		prevT = t
	}

	r.logger.Debug("Pick missed terrain", "origin", vec32(ray.origin), "direction", vec32(ray.direction))
	return Hit{}, false, nil
}

// refine bisects [lo, hi], where the ray is above the terrain at lo and at or
// below it at hi.
func (r *Resolver) refine(ray ray64, lo, hi float64) (Hit, bool, error) {
	iterations := 0
	for iterations < r.opts.MaxIterations && hi-lo > r.opts.Tolerance {
		mid := (lo + hi) / 2
		gap, err := r.gap(ray, mid)
		if err != nil {
			return Hit{}, false, err
		}
		if gap > 0 {
			lo = mid
		} else {
			hi = mid
		}
		iterations++
	}
	return r.hit(ray, (lo+hi)/2, iterations), true, nil
}

// gap is the ray's height above the terrain at parameter t.
func (r *Resolver) gap(ray ray64, t float64) (float64, error) {
	p := ray.at(t)
	h, err := r.field.HeightAt(p.X(), p.Z())
	if err != nil {
		return 0, fmt.Errorf("sampling terrain at t=%.3f: %w", t, err)
	}
	return p.Y() - float64(h), nil
}

func (r *Resolver) hit(ray ray64, t float64, iterations int) Hit {
	return Hit{
		Point:      vec32(ray.at(t)),
		Distance:   float32(t),
		Ray:        ray.export(),
		Iterations: iterations,
	}
}

func mat64(m mgl32.Mat4) mgl64.Mat4 {
	var out mgl64.Mat4
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
