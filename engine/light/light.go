// Package light holds the light system: light instances and their shadow projections, the shadow map
// pool, and the GPU buffers and bind groups the lighting and shadow passes read.
package light

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// LightKind identifies the kind of light source.
type LightKind uint32

const (
	// LightKindDirectional is a light with no position, only direction, such as the sun.
	LightKindDirectional LightKind = iota
	// LightKindPoint emits in all directions from a position, up to a range.
	LightKindPoint
	// LightKindSpot emits in a cone from a position along a direction, up to a range.
	LightKindSpot
)

// String returns the kind name.
func (k LightKind) String() string {
	switch k {
	case LightKindDirectional:
		return "directional"
	case LightKindPoint:
		return "point"
	case LightKindSpot:
		return "spot"
	default:
		return "unknown"
	}
}

const (
	// CubeFaceCount is the number of shadow slots a point light uses.
	CubeFaceCount = 6
	// DirectionalExtent is the half-size of a directional light's orthographic shadow box.
	DirectionalExtent = 10
	// ShadowNear is the near plane of point and spot shadow projections.
	ShadowNear = 0.05
)

// LightType is a light kind together with its kind-specific parameters. Range applies to point and
// spot lights; the cone cosines apply to spot lights.
type LightType struct {
	Kind     LightKind
	Range    float32
	InnerCos float32
	OuterCos float32
}

// Directional returns a directional light type.
func Directional() LightType {
	return LightType{Kind: LightKindDirectional}
}

// Point returns a point light type.
func Point(lightRange float32) LightType {
	return LightType{Kind: LightKindPoint, Range: lightRange}
}

// Spot returns a spot light type with cone cosines. innerCos is greater than outerCos.
func Spot(lightRange, innerCos, outerCos float32) LightType {
	return LightType{Kind: LightKindSpot, Range: lightRange, InnerCos: innerCos, OuterCos: outerCos}
}

// SpotDegrees returns a spot light type from inner and outer cone half-angles in degrees.
func SpotDegrees(lightRange, innerDeg, outerDeg float32) LightType {
	return Spot(lightRange, math32.Cos(mgl32.DegToRad(innerDeg)), math32.Cos(mgl32.DegToRad(outerDeg)))
}

// ShadowmapCount returns the number of shadow slots the light needs: one per cube face for point
// lights, one otherwise.
func (t LightType) ShadowmapCount() uint32 {
	if t.Kind == LightKindPoint {
		return CubeFaceCount
	}
	return 1
}

// LightInstanceState is the mutable part of a light.
type LightInstanceState struct {
	ViewDirection common.ViewDirection
	Color         mgl32.Vec3
	Intensity     float32
	Range         float32
	CastShadow    bool
	// ShadowMapIndex is the first shadow slot, or nil until the pool assigns one.
	ShadowMapIndex *uint32
}

// LightInstance is a spawned light.
type LightInstance struct {
	id        uuid.UUID
	entityID  uuid.UUID
	lightType LightType
	// wantsShadow is the spawn-time request; State.CastShadow is whether a slot is held.
	wantsShadow bool
	state       LightInstanceState
}

// NewLightInstance creates an unassigned light. The state is zero.
//
// Parameters:
//   - entityID: the scene entity the light belongs to
//   - lightType: the light type
//
// Returns:
//   - *LightInstance: the light
func NewLightInstance(entityID uuid.UUID, lightType LightType) *LightInstance {
	return &LightInstance{entityID: entityID, lightType: lightType}
}

// ID returns the spawned light id. It is nil for lights not created by a LightSystem.
func (l *LightInstance) ID() uuid.UUID { return l.id }

// EntityID returns the owning entity id.
func (l *LightInstance) EntityID() uuid.UUID { return l.entityID }

// Type returns the light type.
func (l *LightInstance) Type() LightType { return l.lightType }

// State returns the mutable state. Prefer the LightSystem setters; OnPreRender still uploads
// direct color, intensity and position edits by comparing the marshaled lights.
func (l *LightInstance) State() *LightInstanceState { return &l.state }

// View returns the light's view matrix, looking along its direction.
func (l *LightInstance) View() mgl32.Mat4 {
	vd := l.state.ViewDirection
	return common.LookTo(vd.Position, vd.Direction, common.AxisY)
}

// Projection returns the light's shadow projection: an orthographic box for directional lights, a
// 90 degree square frustum reaching the range for point lights, and a frustum spanning the outer
// cone for spot lights.
func (l *LightInstance) Projection() mgl32.Mat4 {
	switch l.lightType.Kind {
	case LightKindPoint:
		return common.PerspectiveFov(math32.Pi/2, 1, ShadowNear, l.shadowFar())
	case LightKindSpot:
		fov := 2 * math32.Acos(clampCos(l.lightType.OuterCos))
		return common.PerspectiveFov(fov, 1, ShadowNear, l.shadowFar())
	default:
		return common.OrthographicOffCenter(-DirectionalExtent, DirectionalExtent, -DirectionalExtent, DirectionalExtent, -DirectionalExtent, DirectionalExtent)
	}
}

func (l *LightInstance) shadowFar() float32 {
	return max(l.lightType.Range, 2*ShadowNear)
}

func clampCos(c float32) float32 {
	return max(-1, min(c, 1))
}

// ViewProjection returns Projection * View.
func (l *LightInstance) ViewProjection() mgl32.Mat4 {
	return l.Projection().Mul4(l.View())
}

// cubeFaces are the point light face directions and up vectors, in the order the lighting shader's
// cube_face selects them.
var cubeFaces = [CubeFaceCount][2]mgl32.Vec3{
	{{1, 0, 0}, {0, -1, 0}},
	{{-1, 0, 0}, {0, -1, 0}},
	{{0, 1, 0}, {0, 0, 1}},
	{{0, -1, 0}, {0, 0, -1}},
	{{0, 0, 1}, {0, -1, 0}},
	{{0, 0, -1}, {0, -1, 0}},
}

// FaceViewProjection returns the view-projection of one cube face of a point light, in +X, -X, +Y,
// -Y, +Z, -Z order. For other kinds every face is ViewProjection.
//
// Parameters:
//   - face: the face index, 0 through 5
//
// Returns:
//   - mgl32.Mat4: the face view-projection
func (l *LightInstance) FaceViewProjection(face int) mgl32.Mat4 {
	if l.lightType.Kind != LightKindPoint {
		return l.ViewProjection()
	}
	f := cubeFaces[face%CubeFaceCount]
	pos := l.state.ViewDirection.Position
	view := mgl32.LookAtV(pos, pos.Add(f[0]), f[1])
	return l.Projection().Mul4(view)
}

// ToGPU converts the light to its storage buffer layout.
func (l *LightInstance) ToGPU() GPULight {
	vd := l.state.ViewDirection
	g := GPULight{
		View:       l.View(),
		ViewProj:   l.ViewProjection(),
		Position:   vd.Position,
		Range:      l.state.Range,
		Direction:  vd.Direction,
		Intensity:  l.state.Intensity,
		Color:      l.state.Color,
		LightType:  uint32(l.lightType.Kind),
		CastShadow: boolToUint32(l.state.CastShadow),
	}
	if l.lightType.Kind == LightKindSpot {
		g.InnerCos = l.lightType.InnerCos
		g.OuterCos = l.lightType.OuterCos
	}
	if l.state.ShadowMapIndex != nil {
		g.ShadowMapIndex = *l.state.ShadowMapIndex
	}
	return g
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
