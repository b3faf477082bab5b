package core

import (
	"strconv"

	"github.com/gobuffalo/envy"
)

// Configuration defines a global configuration for the device backend
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure frame pacing
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out.
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the window event poll interval in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the Vulkan device
type RendererConfiguration struct {
	ScreenWidth  uint32
	ScreenHeight uint32

	// Debug enables the Khronos validation layer at instance creation
	Debug bool

	// PipelineCachePath is where the pipeline cache blob is persisted
	// between runs. Empty disables persistence.
	PipelineCachePath string

	DeviceExtensions []string
}

// FromEnv assembles a Configuration from the process environment,
// falling back to defaults for anything unset.
func FromEnv() (Configuration, error) {
	width, err := strconv.ParseUint(envy.Get("FNA3D_WIDTH", "800"), 10, 32)
	if err != nil {
		return Configuration{}, err
	}
	height, err := strconv.ParseUint(envy.Get("FNA3D_HEIGHT", "600"), 10, 32)
	if err != nil {
		return Configuration{}, err
	}
	fps, err := strconv.Atoi(envy.Get("FNA3D_FPS", "60"))
	if err != nil {
		return Configuration{}, err
	}
	debug, err := strconv.ParseBool(envy.Get("FNA3D_DEBUG", "false"))
	if err != nil {
		return Configuration{}, err
	}

	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: fps,
			EventPollDelay:  10,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:       uint32(width),
			ScreenHeight:      uint32(height),
			Debug:             debug,
			PipelineCachePath: envy.Get("FNA3D_PIPELINE_CACHE", ""),
			DeviceExtensions: []string{
				"VK_KHR_swapchain\x00",
			},
		},
	}, nil
}
