package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec4 represents a 4D vector, also used for RGBA colours.
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief a 4x4 column-major matrix, as consumed by the shaders. */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief An axis-aligned rectangle in pixels or texels.
 */
type Rect struct {
	X, Y          float32
	Width, Height float32
}

/**
 * @brief Represents a single vertex of a sprite quad.
 */
type Vertex2D struct {
	/** @brief The position of the vertex */
	Position Vec2
	/** @brief The texture coordinate of the vertex. */
	Texcoord Vec2
	/** @brief The colour of the vertex. */
	Colour Vec4
}

// Byte layout of Vertex2D, matched by the sprite pipeline's vertex input.
const (
	Vertex2DSize           = 32
	Vertex2DPositionOffset = 0
	Vertex2DTexcoordOffset = 8
	Vertex2DColourOffset   = 16
)
