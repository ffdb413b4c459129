package math

import gomath "math"

const (
	PI            float32 = 3.14159265358979323846
	DEG2RAD       float32 = PI / 180.0
	FLOAT_EPSILON float32 = 1.192092896e-07
)

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

func (v Vec2) Length() float32 {
	return float32(gomath.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Normalized returns a unit vector, or the zero vector when v has no length.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if l < FLOAT_EPSILON {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func NewMat4Identity() Mat4 {
	m := Mat4{}
	m.Data[0] = 1.0
	m.Data[5] = 1.0
	m.Data[10] = 1.0
	m.Data[15] = 1.0
	return m
}

/**
 * @brief Returns the result of multiplying mt and other. The product applies mt first, then other.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

/**
 * @brief Creates an orthographic projection. Vulkan clip space has y pointing down,
 * so bottom=0 and top=height give a screen space with the origin at the top left.
 */
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	m := NewMat4Identity()

	lr := 1.0 / (left - right)
	bt := 1.0 / (bottom - top)
	nf := 1.0 / (nearClip - farClip)

	m.Data[0] = -2.0 * lr
	m.Data[5] = -2.0 * bt
	m.Data[10] = nf

	m.Data[12] = (left + right) * lr
	m.Data[13] = (top + bottom) * bt
	m.Data[14] = nearClip * nf
	return m
}

func NewMat4Translation(position Vec2) Mat4 {
	m := NewMat4Identity()
	m.Data[12] = position.X
	m.Data[13] = position.Y
	return m
}

func NewMat4Scale(scale Vec2) Mat4 {
	m := NewMat4Identity()
	m.Data[0] = scale.X
	m.Data[5] = scale.Y
	return m
}

// NewMat4RotationZ rotates counter-clockwise around the screen normal.
func NewMat4RotationZ(angleRadians float32) Mat4 {
	m := NewMat4Identity()
	c := float32(gomath.Cos(float64(angleRadians)))
	s := float32(gomath.Sin(float64(angleRadians)))
	m.Data[0] = c
	m.Data[1] = s
	m.Data[4] = -s
	m.Data[5] = c
	return m
}

// TransformPoint applies m to p as (x, y, 0, 1).
func (mt Mat4) TransformPoint(p Vec2) Vec2 {
	return Vec2{
		X: p.X*mt.Data[0] + p.Y*mt.Data[4] + mt.Data[12],
		Y: p.X*mt.Data[1] + p.Y*mt.Data[5] + mt.Data[13],
	}
}
