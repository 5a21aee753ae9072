// Package app implements the main NES emulator application with GUI support.
package app

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"time"

	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/apu"
	"github.com/nesforge/gones-core/internal/bus"
	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/graphics"
	"github.com/nesforge/gones-core/internal/input"
)

// Application is the main NES emulator application: it owns the system
// bus, the graphics backend and its window, an optional audio sink, and
// the main loop that ties them together.
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor
	audioSink       *apu.PortAudioSink

	config   *Config
	emulator *Emulator
	states   *StateManager

	running     bool
	paused      bool
	initialized bool
	headless    bool

	frameCount  uint64
	startTime   time.Time
	lastFPSTime time.Time
	currentFPS  float64

	lastFrameTime       time.Time
	frameCountAtLastFPS uint64
	averageFPS          float64
	minFrameTime        time.Duration
	maxFrameTime        time.Duration
	lastFPSLog          time.Time

	inputTime         time.Duration
	emulatorTime      time.Duration
	renderTime        time.Duration
	totalInputTime    time.Duration
	totalEmulatorTime time.Duration
	totalRenderTime   time.Duration

	recentFrameTimes [10]time.Duration
	frameTimeIndex   int
	frameTimeSum     time.Duration
	frameVariance    float64

	lastMemoryCheck    time.Time
	initialMemoryUsage uint64
	lastMemoryUsage    uint64
	memoryGrowthRate   float64

	romPath   string
	cartridge *cartridge.Cartridge

	lastESCTime time.Time

	lastController1State  [8]bool
	lastController2State  [8]bool
	inputStateInitialized bool
}

// ApplicationError wraps a failure at a specific component/operation.
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a new NES emulator application.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates a new application, optionally forcing
// headless mode (no window, no audio device).
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:      NewConfig(),
		headless:    headless,
		startTime:   time.Now(),
		lastFPSTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			glog.Warningf("app: could not load config from %s, using defaults: %v", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{Component: "initialization", Operation: "component setup", Err: err}
	}

	return app, nil
}

func (app *Application) initializeComponents(headless bool) error {
	app.bus = bus.New(bus.Config{CPU: app.config.CPUConfig()})

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %v", err)
	}

	if !headless && app.config.Audio.Enabled {
		sink, err := apu.NewPortAudioSink(app.config.Audio.SampleRate)
		if err != nil {
			glog.Warningf("app: audio disabled, portaudio init failed: %v", err)
		} else {
			app.audioSink = sink
		}
	}
	app.bus.SetAudioSampleRate(app.config.Audio.SampleRate)

	app.emulator = NewEmulator(app.bus, app.config)
	app.states = NewStateManager(app.config.Paths.SaveData)

	app.initialized = true
	return nil
}

func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	if headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "ebitengine":
			backendType = graphics.BackendEbitengine
		case "sdl2":
			backendType = graphics.BackendSDL2
		case "headless":
			backendType = graphics.BackendHeadless
		case "terminal":
			backendType = graphics.BackendTerminal
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %v", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "gones - Go NES Emulator",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendHeadless {
			glog.Warningf("app: %s backend failed (%v), falling back to headless mode", backendType, err)
			app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return fmt.Errorf("failed to create fallback headless backend: %v", err)
			}
			graphicsConfig.Headless = true
			if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
				return fmt.Errorf("failed to initialize fallback headless backend: %v", err)
			}
		} else {
			return fmt.Errorf("failed to initialize graphics backend: %v", err)
		}
	}

	app.window, err = app.graphicsBackend.CreateWindow(
		graphicsConfig.WindowTitle, graphicsConfig.WindowWidth, graphicsConfig.WindowHeight)
	if err != nil {
		return fmt.Errorf("failed to create window: %v", err)
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness, app.config.Video.Contrast, app.config.Video.Saturation)

	return nil
}

// LoadROM loads a ROM file into the emulator and restores any prior
// battery save RAM for it.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	app.cartridge = cart
	app.romPath = romPath

	app.bus.LoadCartridge(cart)

	if app.config.Emulation.AutoSave {
		if err := app.states.LoadState(app.bus, romPath); err != nil {
			glog.Warningf("app: failed to restore save RAM for %s: %v", romPath, err)
		}
	}

	app.bus.Reset()

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("gones - %s", filepath.Base(romPath)))
	}

	app.emulator.Start()

	return nil
}

// RunFrames drives exactly n frames without the frame-rate-limiting main
// loop, for headless/scripted runs (e.g. automated ROM smoke tests).
func (app *Application) RunFrames(n int) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	for i := 0; i < n; i++ {
		if err := app.processInput(); err != nil {
			glog.Warningf("app: input processing error: %v", err)
		}
		if err := app.updateEmulator(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := app.render(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// Run starts the main application loop, rate-limited to the configured
// frame rate, until the window closes or Stop is called.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()
	app.lastFPSTime = time.Now()

	glog.Infof("app: starting with %s backend", app.graphicsBackend.GetName())

	if app.graphicsBackend.GetName() == "Ebitengine" && app.window != nil {
		if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
			ebitengineWindow.SetEmulatorUpdateFunc(func() error {
				frameStartTime := time.Now()

				if err := app.processInput(); err != nil {
					glog.Warningf("app: input processing error: %v", err)
				}

				emulatorStart := time.Now()
				if err := app.updateEmulator(); err != nil {
					return err
				}
				app.emulatorTime = time.Since(emulatorStart)

				renderStart := time.Now()
				if err := app.render(); err != nil {
					return err
				}
				app.renderTime = time.Since(renderStart)

				app.updatePerformanceMetricsMinimal(frameStartTime)

				if app.window != nil && app.window.ShouldClose() {
					app.Stop()
				}

				return nil
			})
			return ebitengineWindow.Run()
		}
	}

	for app.running {
		frameStartTime := time.Now()

		inputStart := time.Now()
		if err := app.processInput(); err != nil {
			glog.Warningf("app: input processing error: %v", err)
		}
		app.inputTime = time.Since(inputStart)
		app.totalInputTime += app.inputTime

		emulatorStart := time.Now()
		if err := app.updateEmulator(); err != nil {
			glog.Warningf("app: emulator update error: %v", err)
		}
		app.emulatorTime = time.Since(emulatorStart)
		app.totalEmulatorTime += app.emulatorTime

		renderStart := time.Now()
		if err := app.render(); err != nil {
			glog.Warningf("app: render error: %v", err)
		}
		app.renderTime = time.Since(renderStart)
		app.totalRenderTime += app.renderTime

		app.updatePerformanceMetrics(frameStartTime)

		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}

		time.Sleep(16 * time.Millisecond)
	}

	glog.Info("app: main loop ended")
	return nil
}

func (app *Application) updateEmulator() error {
	if !app.paused && app.cartridge != nil {
		if err := app.emulator.Update(); err != nil {
			return err
		}
		if app.audioSink != nil {
			app.audioSink.Push(app.emulator.GetAudioSamples())
		}
	}
	return nil
}

// processInput processes input events from the graphics backend.
func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	var controller1Changed, controller2Changed bool
	controller1Buttons := app.lastController1State
	controller2Buttons := app.lastController2State

	if !app.inputStateInitialized && app.bus != nil && app.cartridge != nil {
		app.lastController1State = controllerButtonArray(app.bus.Input.Controller1)
		app.lastController2State = controllerButtonArray(app.bus.Input.Controller2)
		controller1Buttons = app.lastController1State
		controller2Buttons = app.lastController2State
		app.inputStateInitialized = true
	}

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil

		case graphics.InputEventTypeButton:
			if app.handleSpecialInput(event) {
				continue
			}
			if app.cartridge == nil {
				continue
			}
			if is2PButton(event.Button) {
				if idx := get2PButtonIndex(event.Button); idx >= 0 {
					controller2Buttons[idx] = event.Pressed
					controller2Changed = true
				}
				continue
			}
			if idx := button1Index(graphicsButtonToInputButton(event.Button)); idx >= 0 {
				controller1Buttons[idx] = event.Pressed
				controller1Changed = true
			}

		case graphics.InputEventTypeKey:
			if app.handleSpecialInput(event) {
				continue
			}
			app.handleKeyInput(event)
		}
	}

	if controller1Changed && app.bus != nil && app.cartridge != nil && controller1Buttons != app.lastController1State {
		app.bus.SetControllerButtons(1, controller1Buttons)
		app.lastController1State = controller1Buttons
	}
	if controller2Changed && app.bus != nil && app.cartridge != nil && controller2Buttons != app.lastController2State {
		app.bus.SetControllerButtons(2, controller2Buttons)
		app.lastController2State = controller2Buttons
	}

	return nil
}

func controllerButtonArray(c *input.Controller) [8]bool {
	return [8]bool{
		c.IsPressed(input.ButtonA),
		c.IsPressed(input.ButtonB),
		c.IsPressed(input.ButtonSelect),
		c.IsPressed(input.ButtonStart),
		c.IsPressed(input.ButtonUp),
		c.IsPressed(input.ButtonDown),
		c.IsPressed(input.ButtonLeft),
		c.IsPressed(input.ButtonRight),
	}
}

func button1Index(button input.Button) int {
	switch button {
	case input.ButtonA:
		return 0
	case input.ButtonB:
		return 1
	case input.ButtonSelect:
		return 2
	case input.ButtonStart:
		return 3
	case input.ButtonUp:
		return 4
	case input.ButtonDown:
		return 5
	case input.ButtonLeft:
		return 6
	case input.ButtonRight:
		return 7
	default:
		return -1
	}
}

// handleSpecialInput handles non-gameplay key combinations (quit
// confirmation, etc.). Returns true if the event was consumed.
func (app *Application) handleSpecialInput(event graphics.InputEvent) bool {
	if !event.Pressed {
		return false
	}

	if event.Type == graphics.InputEventTypeKey && event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			glog.Info("app: ESC double-tap confirmed, shutting down")
			app.Stop()
			return true
		}
		glog.Info("app: ESC pressed, press again within 3 seconds to quit")
		app.lastESCTime = now
		return true
	}

	if event.Type == graphics.InputEventTypeKey && event.Key != graphics.KeyEscape {
		app.lastESCTime = time.Time{}
	}

	return false
}

func (app *Application) handleKeyInput(event graphics.InputEvent) bool {
	return false
}

func graphicsButtonToInputButton(gButton graphics.Button) input.Button {
	switch gButton {
	case graphics.ButtonA:
		return input.ButtonA
	case graphics.ButtonB:
		return input.ButtonB
	case graphics.ButtonSelect:
		return input.ButtonSelect
	case graphics.ButtonStart:
		return input.ButtonStart
	case graphics.ButtonUp:
		return input.ButtonUp
	case graphics.ButtonDown:
		return input.ButtonDown
	case graphics.ButtonLeft:
		return input.ButtonLeft
	case graphics.ButtonRight:
		return input.ButtonRight
	default:
		return input.ButtonA
	}
}

func is2PButton(gButton graphics.Button) bool {
	switch gButton {
	case graphics.Button2A, graphics.Button2B, graphics.Button2Select, graphics.Button2Start,
		graphics.Button2Up, graphics.Button2Down, graphics.Button2Left, graphics.Button2Right:
		return true
	default:
		return false
	}
}

func get2PButtonIndex(gButton graphics.Button) int {
	switch gButton {
	case graphics.Button2A:
		return 0
	case graphics.Button2B:
		return 1
	case graphics.Button2Select:
		return 2
	case graphics.Button2Start:
		return 3
	case graphics.Button2Up:
		return 4
	case graphics.Button2Down:
		return 5
	case graphics.Button2Left:
		return 6
	case graphics.Button2Right:
		return 7
	default:
		return -1
	}
}

// SetControllerButtons sets all button states at once for a controller.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// GetBus returns the bus for direct access (testing, scripting).
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

func (app *Application) render() error {
	if app.window == nil {
		return nil
	}

	if app.cartridge != nil {
		frameBufferSlice := app.emulator.GetFrameBuffer()
		if app.videoProcessor != nil {
			frameBufferSlice = app.videoProcessor.ProcessFrame(frameBufferSlice)
		}

		var frameBuffer [256 * 240]uint32
		copy(frameBuffer[:], frameBufferSlice)
		if err := app.window.RenderFrame(frameBuffer); err != nil {
			return fmt.Errorf("failed to render NES frame: %v", err)
		}
	}

	app.window.SwapBuffers()
	return nil
}

func (app *Application) updatePerformanceMetrics(frameStartTime time.Time) {
	now := time.Now()
	app.frameCount++
	frameTime := now.Sub(frameStartTime)

	if app.lastFrameTime.IsZero() {
		app.lastFrameTime = frameStartTime
		app.lastFPSTime = now
		app.frameCountAtLastFPS = app.frameCount
		app.minFrameTime = frameTime
		app.maxFrameTime = frameTime
		app.lastFPSLog = now
		app.lastMemoryCheck = now

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		app.initialMemoryUsage = memStats.Alloc
		app.lastMemoryUsage = memStats.Alloc
		return
	}

	if frameTime < app.minFrameTime {
		app.minFrameTime = frameTime
	}
	if frameTime > app.maxFrameTime {
		app.maxFrameTime = frameTime
	}

	oldFrameTime := app.recentFrameTimes[app.frameTimeIndex]
	app.frameTimeSum -= oldFrameTime
	app.recentFrameTimes[app.frameTimeIndex] = frameTime
	app.frameTimeSum += frameTime
	app.frameTimeIndex = (app.frameTimeIndex + 1) % 10

	if app.frameCount >= 10 {
		avgFrameTime := app.frameTimeSum / 10
		if app.frameCount == 10 {
			variance := 0.0
			for _, ft := range app.recentFrameTimes {
				diff := float64(ft - avgFrameTime)
				variance += diff * diff
			}
			app.frameVariance = variance / 10.0
		} else {
			alpha := 0.1
			newDiff := float64(frameTime - avgFrameTime)
			oldDiff := float64(oldFrameTime - avgFrameTime)
			app.frameVariance = app.frameVariance*(1-alpha) + (newDiff*newDiff-oldDiff*oldDiff)*alpha
			if app.frameVariance < 0 {
				app.frameVariance = 0
			}
		}
	}

	if now.Sub(app.lastFPSTime) >= time.Second {
		elapsed := now.Sub(app.lastFPSTime).Seconds()
		framesInPeriod := app.frameCount - app.frameCountAtLastFPS
		app.currentFPS = float64(framesInPeriod) / elapsed

		totalElapsed := now.Sub(app.startTime).Seconds()
		if totalElapsed > 0 {
			app.averageFPS = float64(app.frameCount) / totalElapsed
		}

		app.lastFPSTime = now
		app.frameCountAtLastFPS = app.frameCount

		if app.config.Debug.EnableLogging && now.Sub(app.lastFPSLog) >= 5*time.Second {
			app.logFPSMetrics(frameTime)
			app.lastFPSLog = now
		}
	}

	if now.Sub(app.lastMemoryCheck) >= 30*time.Second {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		memoryIncrease := float64(memStats.Alloc) - float64(app.lastMemoryUsage)
		timeDiff := now.Sub(app.lastMemoryCheck).Seconds()
		app.memoryGrowthRate = memoryIncrease / timeDiff / (1024 * 1024)

		if app.config.Debug.EnableLogging {
			glog.Infof("app: memory %.2f MB, growth %.3f MB/s", float64(memStats.Alloc)/(1024*1024), app.memoryGrowthRate)
		}

		app.lastMemoryUsage = memStats.Alloc
		app.lastMemoryCheck = now
	}

	app.lastFrameTime = now
}

func (app *Application) updatePerformanceMetricsMinimal(frameStartTime time.Time) {
	now := time.Now()
	app.frameCount++
	frameTime := now.Sub(frameStartTime)

	if app.lastFrameTime.IsZero() {
		app.lastFrameTime = frameStartTime
		app.lastFPSTime = now
		app.frameCountAtLastFPS = app.frameCount
		app.minFrameTime = frameTime
		app.maxFrameTime = frameTime
		app.lastFPSLog = now
		return
	}

	if frameTime < app.minFrameTime {
		app.minFrameTime = frameTime
	}
	if frameTime > app.maxFrameTime {
		app.maxFrameTime = frameTime
	}

	if now.Sub(app.lastFPSTime) >= time.Second {
		elapsed := now.Sub(app.lastFPSTime).Seconds()
		framesInPeriod := app.frameCount - app.frameCountAtLastFPS
		app.currentFPS = float64(framesInPeriod) / elapsed

		totalElapsed := now.Sub(app.startTime).Seconds()
		if totalElapsed > 0 {
			app.averageFPS = float64(app.frameCount) / totalElapsed
		}

		app.lastFPSTime = now
		app.frameCountAtLastFPS = app.frameCount

		if app.config.Debug.EnableLogging && now.Sub(app.lastFPSLog) >= 10*time.Second {
			glog.Infof("app: %.1f fps (avg %.1f), frame %d, emulate %.2fms, render %.2fms",
				app.currentFPS, app.averageFPS, app.frameCount,
				float64(app.emulatorTime.Nanoseconds())/1e6, float64(app.renderTime.Nanoseconds())/1e6)
			app.lastFPSLog = now
		}
	}

	app.lastFrameTime = now
}

func (app *Application) logFPSMetrics(frameTime time.Duration) {
	glog.Infof("app: fps current=%.1f average=%.1f frame=%d runtime=%.1fs",
		app.currentFPS, app.averageFPS, app.frameCount, time.Since(app.startTime).Seconds())
	glog.Infof("app: timing frame=%.2fms min=%.2fms max=%.2fms",
		float64(frameTime.Nanoseconds())/1e6, float64(app.minFrameTime.Nanoseconds())/1e6, float64(app.maxFrameTime.Nanoseconds())/1e6)

	if app.frameCount >= 10 {
		avgRecent := float64(app.frameTimeSum.Nanoseconds()) / 10.0 / 1e6
		stdDev := 0.0
		if app.frameVariance >= 0 {
			stdDev = math.Sqrt(app.frameVariance) / 1e6
		}
		glog.Infof("app: frame pacing avg=%.2fms stddev=%.2fms", avgRecent, stdDev)
	}

	if app.frameCount > 0 {
		n := float64(app.frameCount)
		glog.Infof("app: component averages input=%.2fms emulate=%.2fms render=%.2fms",
			float64(app.totalInputTime.Nanoseconds())/n/1e6,
			float64(app.totalEmulatorTime.Nanoseconds())/n/1e6,
			float64(app.totalRenderTime.Nanoseconds())/n/1e6)
	}
}

// Stop stops the application.
func (app *Application) Stop() {
	app.running = false
}

// Pause pauses the emulator.
func (app *Application) Pause() {
	app.paused = true
}

// Resume resumes the emulator.
func (app *Application) Resume() {
	app.paused = false
}

// TogglePause toggles pause state.
func (app *Application) TogglePause() {
	app.paused = !app.paused
}

// SaveState persists the current cartridge's battery save RAM.
func (app *Application) SaveState() error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.SaveState(app.bus, app.romPath)
}

// LoadState restores the current cartridge's battery save RAM from disk.
func (app *Application) LoadState() error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.LoadState(app.bus, app.romPath)
}

// Reset resets the emulator.
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// IsRunning returns whether the application is running.
func (app *Application) IsRunning() bool {
	return app.running
}

// IsPaused returns whether the emulator is paused.
func (app *Application) IsPaused() bool {
	return app.paused
}

// GetFPS returns the current FPS.
func (app *Application) GetFPS() float64 {
	return app.currentFPS
}

// GetFrameCount returns the total frame count.
func (app *Application) GetFrameCount() uint64 {
	return app.frameCount
}

// GetUptime returns the application uptime.
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetROMPath returns the currently loaded ROM path.
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration.
func (app *Application) GetConfig() *Config {
	return app.config
}

// ApplyDebugSettings raises glog's verbosity level when debug logging is
// enabled in the configuration.
func (app *Application) ApplyDebugSettings() {
	if app.config == nil {
		return
	}
	if app.config.Debug.EnableLogging {
		flag.Set("v", "2")
		glog.Info("app: debug logging enabled")
	} else {
		flag.Set("v", "0")
	}
}

// Cleanup releases all application resources.
func (app *Application) Cleanup() error {
	glog.Info("app: cleaning up")

	var lastErr error

	if app.config != nil && app.config.Emulation.AutoSave && app.cartridge != nil {
		if err := app.states.SaveState(app.bus, app.romPath); err != nil {
			glog.Warningf("app: failed to persist save RAM: %v", err)
		}
	}

	if app.states != nil {
		if err := app.states.Cleanup(); err != nil {
			lastErr = err
			glog.Errorf("app: state manager cleanup error: %v", err)
		}
	}

	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
			glog.Errorf("app: emulator cleanup error: %v", err)
		}
	}

	if app.audioSink != nil {
		app.audioSink.Close()
	}

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			glog.Errorf("app: window cleanup error: %v", err)
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			glog.Errorf("app: graphics backend cleanup error: %v", err)
		}
	}

	app.initialized = false
	return lastErr
}
