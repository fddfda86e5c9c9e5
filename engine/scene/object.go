package scene

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// object is one placement of a primitive with a material.
type object struct {
	id        uuid.UUID
	primitive *renderer.Primitive
	material  uuid.UUID
	transform common.Transform
	local     mgl32.Mat4
	// spin is the angular velocity in radians per second about the local X, Y and Z axes.
	spin    mgl32.Vec3
	radius  float32
	enabled bool

	light       uuid.UUID
	lightOffset mgl32.Vec3
}

// batchKey groups objects that share one RenderItem.
type batchKey struct {
	material  uuid.UUID
	primitive *renderer.Primitive
	local     mgl32.Mat4
}

func (o *object) key() batchKey {
	return batchKey{material: o.material, primitive: o.primitive, local: o.local}
}

// boundingRadius scales the model-space radius by the largest scale axis.
func (o *object) boundingRadius() float32 {
	s := o.transform.Scale
	return o.radius * max(abs(s.X()), abs(s.Y()), abs(s.Z()))
}

func (o *object) advance(dt float32) {
	if o.spin == (mgl32.Vec3{}) {
		return
	}
	step := mgl32.AnglesToQuat(o.spin.X()*dt, o.spin.Y()*dt, o.spin.Z()*dt, mgl32.XYZ)
	o.transform.Rotation = o.transform.Rotation.Mul(step).Normalize()
}

func (o *object) lightView() common.ViewDirection {
	return common.ViewDirection{
		Position:  mgl32.TransformCoordinate(o.lightOffset, o.transform.Matrix()),
		Direction: o.transform.Forward(),
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
