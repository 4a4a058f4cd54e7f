package common

// Unit labels the coordinate space that emitter positions and sigmas live in.
type Unit string

const (
	// UnitPixel is the model's native pixel coordinate space.
	UnitPixel Unit = "px"
	// UnitNanometer is the physical sample coordinate space.
	UnitNanometer Unit = "nm"
)

// Valid reports whether the unit is one of the supported coordinate spaces.
func (u Unit) Valid() bool {
	return u == UnitPixel || u == UnitNanometer
}
