package engine

// Calibrate applies the affine calibration to v.
func Calibrate(v float64, c Calibration) float64 {
	return v*c.Scale + c.Offset
}
