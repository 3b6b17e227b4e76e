// Package phi provides tuning constants derived from the golden ratio.
// Behaviour defaults trace back to these instead of ad-hoc magic numbers.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

var (
	// Agnosis (Φ⁻³): the noise floor. ~24%.
	Agnosis = math.Pow(Phi, -3) // 0.23606...

	// Matter (Φ⁻¹): the share that persists. ~62%.
	Matter = math.Pow(Phi, -1) // 0.61803...
)

// GrowthAngle is the golden angle in degrees (phyllotaxis spacing).
const GrowthAngle = 137.5077

// GrowthAngleRad is GrowthAngle in radians.
var GrowthAngleRad = GrowthAngle * math.Pi / 180
