package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Axis vectors in the engine's right-handed world space. Cameras look down -Z with +Y up.
var (
	AxisX   = mgl32.Vec3{1, 0, 0}
	AxisY   = mgl32.Vec3{0, 1, 0}
	AxisZ   = mgl32.Vec3{0, 0, 1}
	Forward = mgl32.Vec3{0, 0, -1}
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// PutFloat32s writes values little-endian into buf starting at offset.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the first value
//   - values: values to write
//
// Returns:
//   - int: the byte offset just past the last written value
func PutFloat32s(buf []byte, offset int, values ...float32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	return offset
}

// PutMat4 writes a column-major 4x4 matrix (64 bytes) into buf starting at offset.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the matrix
//   - m: the matrix
//
// Returns:
//   - int: the byte offset just past the matrix
func PutMat4(buf []byte, offset int, m mgl32.Mat4) int {
	return PutFloat32s(buf, offset, m[:]...)
}

// PerspectiveOffCenter builds a right-handed perspective projection with zero-to-one depth from the
// tangents of the four frustum half-angles. Left and down tangents are negative for a frustum that
// straddles the view axis; the frustum need not be symmetric.
//
// Parameters:
//   - tanLeft, tanRight: tangents of the left and right half-angles
//   - tanDown, tanUp: tangents of the down and up half-angles
//   - near, far: clip plane distances
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveOffCenter(tanLeft, tanRight, tanDown, tanUp, near, far float32) mgl32.Mat4 {
	width := tanRight - tanLeft
	height := tanUp - tanDown

	var m mgl32.Mat4
	m[0] = 2 / width
	m[5] = 2 / height
	m[8] = (tanRight + tanLeft) / width
	m[9] = (tanUp + tanDown) / height
	m[10] = -far / (far - near)
	m[11] = -1
	m[14] = -(far * near) / (far - near)
	return m
}

// OrthographicOffCenter builds a right-handed orthographic projection with zero-to-one depth.
//
// Parameters:
//   - left, right: horizontal box extents
//   - bottom, top: vertical box extents
//   - near, far: clip plane distances
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func OrthographicOffCenter(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	var m mgl32.Mat4
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = -1 / (far - near)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = -near / (far - near)
	m[15] = 1
	return m
}

// PerspectiveFov builds a symmetric zero-to-one perspective projection.
//
// Parameters:
//   - fovY: full vertical field of view in radians
//   - aspect: width over height
//   - near, far: clip plane distances
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveFov(fovY, aspect, near, far float32) mgl32.Mat4 {
	t := math32.Tan(fovY / 2)
	return PerspectiveOffCenter(-t*aspect, t*aspect, -t, t, near, far)
}

// LookTo builds a right-handed view matrix for an eye looking along a direction.
// When the direction is parallel to up, the X axis is used as up instead.
//
// Parameters:
//   - eye: eye position
//   - direction: view direction, need not be normalized
//   - up: approximate up vector
//
// Returns:
//   - mgl32.Mat4: the view matrix
func LookTo(eye, direction, up mgl32.Vec3) mgl32.Mat4 {
	dir := direction.Normalize()
	if math32.Abs(dir.Dot(up.Normalize())) > 0.999 {
		up = AxisX
	}
	return mgl32.LookAtV(eye, eye.Add(dir), up)
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of model, widened to a Mat4.
func NormalMatrix(model mgl32.Mat4) mgl32.Mat4 {
	n := model.Mat3().Inv().Transpose()
	return n.Mat4()
}
