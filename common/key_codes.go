package common

// Key codes delivered by the window key callbacks. Printable keys use their ASCII values, the rest follow GLFW.
const (
	KeyA     = 65
	KeyD     = 68
	KeyE     = 69
	KeyQ     = 81
	KeyS     = 83
	KeyW     = 87
	KeyB     = 66 // bloom toggle in the demos
	KeyH     = 72 // sharpen toggle in the demos
	KeyT     = 84 // TAA toggle in the demos
	KeySpace = 32
	KeyEsc   = 256
)
