package resources

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// SPIR-V bytecode for one shader stage.
	ResourceTypeShader
	// Decoded image, always RGBA8.
	ResourceTypeImage
	// AngelCode BMFont descriptor plus its page images.
	ResourceTypeBitmapFont
	// TrueType or OpenType font file.
	ResourceTypeSystemFont
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBitmapFont:
		return "bitmap-font"
	case ResourceTypeSystemFont:
		return "system-font"
	default:
		return "none"
	}
}

// Resource is what every loader hands back. Data holds one of the *Data
// types below, matching Type.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

type ShaderData struct {
	Stage ShaderStage
	Code  []byte
}

// ImageData holds tightly packed RGBA8 pixels, rows top to bottom unless
// the load flipped them.
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

type ImageParams struct {
	FlipY bool
}

type FontGlyph struct {
	Codepoint rune
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type FontKerning struct {
	Codepoint0 rune
	Codepoint1 rune
	Amount     int16
}

// FontData is the layout side of a font: metrics and where every glyph sits
// in the atlas.
type FontData struct {
	Face        string
	Size        uint32
	LineHeight  int32
	Baseline    int32
	AtlasSizeX  int32
	AtlasSizeY  int32
	Glyphs      []FontGlyph
	Kernings    []FontKerning
	TabXAdvance float32
}

type BitmapFontPage struct {
	ID   int
	File string
	// RGBA8 pixels of the page, AtlasSizeX by AtlasSizeY.
	Pixels []byte
}

type BitmapFontData struct {
	Font  *FontData
	Pages []BitmapFontPage
}

// SystemFontData is a parsed vector font; atlases are rasterized from it per size.
type SystemFontData struct {
	Face string
	// Raw font file, kept so faces of other sizes can be created later.
	Binary []byte
}
