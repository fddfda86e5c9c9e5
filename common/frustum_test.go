package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumIntersectsSphere(t *testing.T) {
	proj := PerspectiveFov(mgl32.DegToRad(90), 1, 0.1, 100)
	view := LookTo(mgl32.Vec3{}, Forward, AxisY)
	f := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		want   bool
	}{
		{"ahead", mgl32.Vec3{0, 0, -10}, 1, true},
		{"behind", mgl32.Vec3{0, 0, 10}, 1, false},
		{"beyond far", mgl32.Vec3{0, 0, -200}, 1, false},
		{"far left", mgl32.Vec3{-50, 0, -10}, 1, false},
		{"straddles left plane", mgl32.Vec3{-10.5, 0, -10}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IntersectsSphere(tt.center, tt.radius))
		})
	}
}
