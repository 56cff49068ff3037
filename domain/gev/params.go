package gev

import (
	"fmt"
	"math"

	"lakeattr/domain/core"
)

// Params are the three GEV parameters.
//
// Shape is ξ in the climate convention: ξ > 0 gives a heavy upper tail,
// ξ < 0 a bounded upper tail, ξ == 0 the Gumbel limit. SciPy's
// genextreme uses c = -ξ; convert with FromSciPy and SciPyShape.
type Params struct {
	Shape    float64 `json:"shape"`
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
}

// FromSciPy converts SciPy genextreme (c, loc, scale) to Params.
func FromSciPy(c, loc, scale float64) Params {
	return Params{Shape: -c, Location: loc, Scale: scale}
}

// SciPyShape returns the SciPy genextreme shape c.
func (p Params) SciPyShape() float64 { return -p.Shape }

// Validate checks finiteness and a positive scale.
func (p Params) Validate() error {
	for name, v := range map[string]float64{"shape": p.Shape, "location": p.Location, "scale": p.Scale} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", core.ErrInvalidParameters, name, v)
		}
	}
	if p.Scale <= 0 {
		return fmt.Errorf("%w: scale %v must be positive", core.ErrInvalidParameters, p.Scale)
	}
	return nil
}

// IsGumbel reports whether the shape is treated as zero.
func (p Params) IsGumbel() bool { return math.Abs(p.Shape) < gumbelTolerance }

// WithLocation returns a copy with a different location.
func (p Params) WithLocation(loc float64) Params {
	p.Location = loc
	return p
}

func (p Params) String() string {
	return fmt.Sprintf("shape=%.4f loc=%.4f scale=%.4f", p.Shape, p.Location, p.Scale)
}
