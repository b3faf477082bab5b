package main

import (
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/RotatingArtDev/FNA3D/core"
	"github.com/RotatingArtDev/FNA3D/device"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}
	configuration, err := core.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}
	if configuration.Renderer.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.WithError(err).Fatal("sdl init failed")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.WithError(err).Fatal("vulkan library load failed")
	}
	defer sdl.VulkanUnloadLibrary()

	driver, err := device.Lookup("Vulkan")
	if err != nil {
		log.WithError(err).Fatal("no vulkan driver registered")
	}
	windowFlags, err := driver.PrepareWindowAttributes()
	if err != nil {
		log.WithError(err).Fatal("window attributes failed")
	}

	window, err := sdl.CreateWindow("FNA3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(configuration.Renderer.ScreenWidth),
		int32(configuration.Renderer.ScreenHeight),
		windowFlags|sdl.WINDOW_RESIZABLE)
	if err != nil {
		log.WithError(err).Fatal("window creation failed")
	}
	defer window.Destroy()

	dev, err := driver.CreateDevice(device.PresentationParameters{
		BackBufferWidth:    int32(configuration.Renderer.ScreenWidth),
		BackBufferHeight:   int32(configuration.Renderer.ScreenHeight),
		BackBufferFormat:   device.SurfaceFormatColor,
		DepthStencilFormat: device.DepthFormatD24S8,
		DeviceWindowHandle: window,
	}, configuration.Renderer.Debug)
	if err != nil {
		log.WithError(err).Fatal("device creation failed")
	}
	defer dev.Destroy()

	time := core.NewTime(configuration.Time)
	exitC := make(chan struct{}, 2)

	if err := dev.BeginFrame(); err != nil {
		log.WithError(err).Fatal("first frame failed")
	}

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("event loop exited")
			break EventLoop
		case <-time.FpsTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						exitC <- struct{}{}
						continue EventLoop
					}
				case *sdl.WindowEvent:
					if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
						width, height := window.GetSize()
						if err := dev.ResetBackbuffer(device.PresentationParameters{
							BackBufferWidth:    width,
							BackBufferHeight:   height,
							BackBufferFormat:   device.SurfaceFormatColor,
							DepthStencilFormat: device.DepthFormatD24S8,
							DeviceWindowHandle: window,
						}); err != nil {
							log.WithError(err).Error("backbuffer reset failed")
						}
					}
				case *sdl.QuitEvent:
					exitC <- struct{}{}
					continue EventLoop
				}
			}

			dev.Clear(device.ClearTarget, mgl32.Vec4{0.0, 0.2, 0.4, 1.0}, 1.0, 0)
			if err := dev.SwapBuffers(); err != nil {
				log.WithError(err).Error("frame failed")
				exitC <- struct{}{}
			}
		}
	}

	if err := dev.EndFrame(); err != nil {
		log.WithError(err).Warn("final frame not presented")
	}
}
