package components

import (
	"github.com/spaghettifunk/tessera/engine/math"
)

const (
	MinZoom = 0.1
	MaxZoom = 10
)

/**
 * @brief A 2D camera looking at Position, rotated by Rotation radians and
 * magnified by Zoom. World space has y pointing down, like the screen.
 */
type Camera struct {
	/**
	 * @brief The world point shown at the centre of the viewport.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec2
	Rotation float32
	Zoom     float32
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera, without the viewport centring.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead.
	 */
	ViewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.Vec2{}
	c.Rotation = 0
	c.Zoom = 1
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec2 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec2) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetRotation(radians float32) {
	c.Rotation = radians
	c.IsDirty = true
}

// SetZoom clamps zoom to [MinZoom, MaxZoom].
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = math.Clamp(zoom, MinZoom, MaxZoom)
	c.IsDirty = true
}

func (c *Camera) Move(delta math.Vec2) {
	c.Position = c.Position.Add(delta)
	c.IsDirty = true
}

// GetView maps world space to camera space, with Position at the origin.
func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4Translation(c.Position.Scale(-1)).
			Mul(math.NewMat4RotationZ(-c.Rotation)).
			Mul(math.NewMat4Scale(math.NewVec2(c.Zoom, c.Zoom)))
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// ViewProjection maps world space to clip space for a width by height
// viewport, Position landing on its centre.
func (c *Camera) ViewProjection(width, height uint32) math.Mat4 {
	w, h := float32(width), float32(height)
	return c.GetView().
		Mul(math.NewMat4Translation(math.NewVec2(w/2, h/2))).
		Mul(math.NewMat4Orthographic(0, w, 0, h, -1, 1))
}
