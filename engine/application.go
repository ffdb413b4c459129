package engine

import "time"

type ApplicationConfig struct {
	// The application name used for the window title and the Vulkan instance.
	Name string
	// TOML configuration file, see core.LoadConfig.
	ConfigPath string
	// Simulation ticks per second. Defaults to 60.
	TickRate int
}

func (c *ApplicationConfig) tick() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}
