package light

import "github.com/Carmen-Shannon/oxy-xr/common"

// Cull returns a visibility predicate for ReassignShadows. Directional lights are always visible;
// point and spot lights are visible when their range sphere touches the frustum.
//
// Parameters:
//   - frustum: the view frustum, usually from common.ExtractFrustum of a camera view-projection
//
// Returns:
//   - func(*LightInstance) bool: the predicate
func Cull(frustum common.Frustum) func(*LightInstance) bool {
	return func(l *LightInstance) bool {
		if l.Type().Kind == LightKindDirectional {
			return true
		}
		return frustum.IntersectsSphere(l.State().ViewDirection.Position, l.Type().Range)
	}
}

// CullAny is Cull over several frustums, such as the two eyes of a stereo camera. A light is
// visible if any frustum sees it.
func CullAny(frustums ...common.Frustum) func(*LightInstance) bool {
	preds := make([]func(*LightInstance) bool, len(frustums))
	for i, f := range frustums {
		preds[i] = Cull(f)
	}
	return func(l *LightInstance) bool {
		for _, p := range preds {
			if p(l) {
				return true
			}
		}
		return false
	}
}
