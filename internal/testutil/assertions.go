package testutil

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// AssertVec3InDelta checks every component of actual against expected.
func AssertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64, msgAndArgs ...interface{}) bool {
	t.Helper()

	ok := assert.InDelta(t, expected.X(), actual.X(), delta, msgAndArgs...)
	ok = assert.InDelta(t, expected.Y(), actual.Y(), delta, msgAndArgs...) && ok
	ok = assert.InDelta(t, expected.Z(), actual.Z(), delta, msgAndArgs...) && ok
	return ok
}

// AssertFinite fails when v is NaN or infinite.
func AssertFinite(t *testing.T, v float64, msgAndArgs ...interface{}) bool {
	t.Helper()

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return assert.Fail(t, "value is not finite", msgAndArgs...)
	}
	return true
}
