package core

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool `toml:"validation"`
	// Requests immediate presentation; FIFO is used when unsupported.
	Immediate        bool       `toml:"immediate"`
	SampleCount      uint32     `toml:"sample_count"`
	AcquireTimeoutMS uint32     `toml:"acquire_timeout_ms"`
	ClearColor       [4]float32 `toml:"clear_color"`
	DeviceMemoryMB   uint32     `toml:"device_memory_mb"`
	StagingMemoryMB  uint32     `toml:"staging_memory_mb"`
	StorageSlots     uint32     `toml:"storage_slots"`
	StorageSlotSize  uint32     `toml:"storage_slot_size"`
	MaxTextures      uint32     `toml:"max_textures"`
	PipelineCache    string     `toml:"pipeline_cache"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Tessera",
			X:      100,
			Y:      100,
			Width:  800,
			Height: 600,
		},
		Log: LogConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			Validation:       false,
			Immediate:        false,
			SampleCount:      1,
			AcquireTimeoutMS: 1000,
			ClearColor:       [4]float32{0.05, 0.05, 0.08, 1.0},
			DeviceMemoryMB:   64,
			StagingMemoryMB:  16,
			StorageSlots:     64,
			StorageSlotSize:  64 * 1024,
			MaxTextures:      256,
			PipelineCache:    "pipeline.cache",
		},
		Assets: AssetsConfig{
			Dir:   "assets",
			Watch: true,
		},
	}
}

// LoadConfig decodes the TOML file at path on top of DefaultConfig.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogInfo("config file '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, WrapError(err, KindInit, "reading config %s", path)
	}
	if err := DecodeConfig(data, cfg); err != nil {
		return nil, WrapError(err, KindInit, "decoding config %s", path)
	}
	return cfg, nil
}

func DecodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return NewError(KindUsage, "window size must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.SampleCount {
	case 1, 2, 4, 8:
	default:
		return NewError(KindUsage, "unsupported sample count %d", c.Renderer.SampleCount)
	}
	if c.Renderer.DeviceMemoryMB == 0 || c.Renderer.StagingMemoryMB == 0 {
		return NewError(KindUsage, "memory sizes must be non-zero")
	}
	if c.Renderer.StorageSlots == 0 || c.Renderer.StorageSlotSize == 0 {
		return NewError(KindUsage, "storage slots must be non-zero")
	}
	if c.Renderer.MaxTextures == 0 {
		return NewError(KindUsage, "max textures must be non-zero")
	}
	if c.Renderer.AcquireTimeoutMS == 0 {
		return NewError(KindUsage, "acquire timeout must be non-zero")
	}
	return nil
}
