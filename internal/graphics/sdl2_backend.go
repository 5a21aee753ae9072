package graphics

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

// SDL2Backend implements Backend on top of veandco/go-sdl2: an
// accelerated renderer with a streaming texture the size of one NES
// frame, scaled up to fill the window.
type SDL2Backend struct {
	initialized bool
}

// SDL2Window owns the SDL window, renderer, and streaming texture for
// one open display.
type SDL2Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   []byte
	width    int
	height   int
	closed   bool
}

// NewSDL2Backend creates an uninitialized SDL2 backend.
func NewSDL2Backend() Backend {
	return &SDL2Backend{}
}

// Initialize brings up the SDL video subsystem.
func (b *SDL2Backend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("sdl2 backend already initialized")
	}
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("sdl2: init: %w", err)
	}
	b.initialized = true
	return nil
}

// CreateWindow opens a window with an accelerated renderer and a
// streaming RGB24 texture sized to one NES frame buffer.
func (b *SDL2Backend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("sdl2: backend not initialized")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("sdl2: create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		return nil, fmt.Errorf("sdl2: create renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGB24, sdl.TEXTUREACCESS_STREAMING, 256, 240)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return nil, fmt.Errorf("sdl2: create texture: %w", err)
	}

	return &SDL2Window{
		window:   window,
		renderer: renderer,
		texture:  texture,
		pixels:   make([]byte, 256*240*3),
		width:    width,
		height:   height,
	}, nil
}

// Cleanup shuts down SDL entirely.
func (b *SDL2Backend) Cleanup() error {
	sdl.Quit()
	b.initialized = false
	return nil
}

// IsHeadless is always false for the SDL2 backend.
func (b *SDL2Backend) IsHeadless() bool { return false }

// GetName identifies this backend.
func (b *SDL2Backend) GetName() string { return "SDL2" }

// SetTitle updates the window title.
func (w *SDL2Window) SetTitle(title string) {
	w.window.SetTitle(title)
}

// GetSize returns the window's current dimensions.
func (w *SDL2Window) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose reports whether the window has been closed.
func (w *SDL2Window) ShouldClose() bool {
	return w.closed
}

// SwapBuffers presents the renderer's current contents.
func (w *SDL2Window) SwapBuffers() {
	w.renderer.Present()
}

// PollEvents drains the SDL event queue and translates it to InputEvents.
func (w *SDL2Window) PollEvents() []InputEvent {
	var events []InputEvent
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch ev := e.(type) {
		case *sdl.QuitEvent:
			w.closed = true
			events = append(events, InputEvent{Type: InputEventTypeQuit})
		case *sdl.KeyboardEvent:
			pressed := ev.Type == sdl.KEYDOWN
			if key, ok := sdlKeyMap[ev.Keysym.Sym]; ok {
				events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: pressed})
			}
			if button, ok := sdlButtonMap[ev.Keysym.Sym]; ok {
				events = append(events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: pressed})
			}
		}
	}
	return events
}

// RenderFrame converts the packed-ARGB NES frame buffer to RGB24 and
// uploads it into the streaming texture.
func (w *SDL2Window) RenderFrame(frameBuffer [256 * 240]uint32) error {
	for i, pixel := range frameBuffer {
		w.pixels[i*3+0] = uint8(pixel >> 16)
		w.pixels[i*3+1] = uint8(pixel >> 8)
		w.pixels[i*3+2] = uint8(pixel)
	}
	if err := w.texture.Update(nil, unsafe.Pointer(&w.pixels[0]), 256*3); err != nil {
		return fmt.Errorf("sdl2: texture update: %w", err)
	}
	w.renderer.Clear()
	w.renderer.Copy(w.texture, nil, nil)
	return nil
}

// Cleanup releases the texture, renderer, and window.
func (w *SDL2Window) Cleanup() error {
	w.texture.Destroy()
	w.renderer.Destroy()
	w.window.Destroy()
	return nil
}

var sdlKeyMap = map[sdl.Keycode]Key{
	sdl.K_ESCAPE: KeyEscape,
	sdl.K_RETURN: KeyEnter,
	sdl.K_SPACE:  KeySpace,
	sdl.K_UP:     KeyUp,
	sdl.K_DOWN:   KeyDown,
	sdl.K_LEFT:   KeyLeft,
	sdl.K_RIGHT:  KeyRight,
}

var sdlButtonMap = map[sdl.Keycode]Button{
	sdl.K_x:       ButtonA,
	sdl.K_z:       ButtonB,
	sdl.K_RSHIFT:  ButtonSelect,
	sdl.K_RETURN:  ButtonStart,
	sdl.K_UP:      ButtonUp,
	sdl.K_DOWN:    ButtonDown,
	sdl.K_LEFT:    ButtonLeft,
	sdl.K_RIGHT:   ButtonRight,
}
