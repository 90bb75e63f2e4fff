// Package hal is the hardware abstraction layer for the emulator: an
// SDL2 window and keyboard plus an oto tone generator, implementing the
// capability interfaces the chip8 core consumes.
package hal

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/kapitanov/chip8emu/internal/chip8"
)

var (
	ErrQuit      = errors.New("quit")
	ErrSaveState = errors.New("save state")
	ErrLoadState = errors.New("load state")
)

type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	tone *TonePlayer

	mu    sync.Mutex
	keys  [chip8.KeyCount]bool
	dirty bool
}

// New opens the emulator window at the given pixel scale and prepares
// the audio output.
func New(scale int) (*HAL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	width := int32(chip8.ScreenWidth * scale)
	height := int32(chip8.ScreenHeight * scale)

	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "w", width, "h", height)

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err := renderer.SetLogicalSize(width, height); err != nil {
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, chip8.ScreenWidth, chip8.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	tone, err := NewTonePlayer()
	if err != nil {
		return nil, fmt.Errorf("failed to create tone player: %w", err)
	}
	slog.Debug("hal: create tone player")

	return &HAL{
		window:          window,
		renderer:        renderer,
		texture:         texture,
		backBuffer:      make([]uint32, chip8.ScreenWidth*chip8.ScreenHeight),
		backBufferPitch: chip8.ScreenWidth * int(unsafe.Sizeof(uint32(0))),
		tone:            tone,
	}, nil
}

func (h *HAL) Shutdown() {
	h.tone.Close()

	if err := h.texture.Destroy(); err != nil {
		slog.Error("failed to destroy sdl texture", "err", err)
	}

	if err := h.renderer.Destroy(); err != nil {
		slog.Error("failed to destroy sdl renderer", "err", err)
	}

	if err := h.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

// IsPressed implements chip8.Keyboard.
func (h *HAL) IsPressed(key uint8) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.keys[key]
}

// ScreenChanged implements chip8.Display. The actual pixels are pulled
// from the machine on the next frame.
func (h *HAL) ScreenChanged() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty = true
}

// StartTone and StopTone implement chip8.Sound.
func (h *HAL) StartTone() { h.tone.Start() }
func (h *HAL) StopTone()  { h.tone.Stop() }

// Crashed implements chip8.FaultReporter.
func (h *HAL) Crashed(msg string) {
	h.window.SetTitle("CHIP-8 (crashed)")
	slog.Error("hal: machine crashed", "err", msg)
}

// ConsumeRedraw reports whether the screen changed since the last call
// and clears the flag.
func (h *HAL) ConsumeRedraw() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	dirty := h.dirty
	h.dirty = false
	return dirty
}

// PollEvents drains the SDL event queue, forwarding keypad presses and
// releases. It returns ErrQuit when the window is closed and
// ErrSaveState/ErrLoadState for the state hotkeys.
func (h *HAL) PollEvents(press func(key uint8), release func(key uint8)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return ErrQuit

		case sdl.KEYDOWN:
			ke := e.(*sdl.KeyboardEvent)
			switch ke.Keysym.Scancode {
			case sdl.SCANCODE_ESCAPE:
				return ErrQuit
			case sdl.SCANCODE_F5:
				return ErrSaveState
			case sdl.SCANCODE_F7:
				return ErrLoadState
			}
			if key, ok := keyMap(ke); ok {
				h.setKey(key, true)
				press(key)
			}

		case sdl.KEYUP:
			if key, ok := keyMap(e.(*sdl.KeyboardEvent)); ok {
				h.setKey(key, false)
				release(key)
			}
		}
	}

	return nil
}

func (h *HAL) setKey(key uint8, down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys[key] = down
}

func keyMap(e *sdl.KeyboardEvent) (uint8, bool) {
	// Physical                Logical
	// ================        =================
	// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
	// | q | w | e | r |       | 4 | 5 | 6 | D |
	// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
	// | z | x | c | v |       | A | 0 | B | F |
	switch e.Keysym.Scancode {
	case sdl.SCANCODE_X:
		return 0x0, true
	case sdl.SCANCODE_1:
		return 0x1, true
	case sdl.SCANCODE_2:
		return 0x2, true
	case sdl.SCANCODE_3:
		return 0x3, true
	case sdl.SCANCODE_Q:
		return 0x4, true
	case sdl.SCANCODE_W:
		return 0x5, true
	case sdl.SCANCODE_E:
		return 0x6, true
	case sdl.SCANCODE_A:
		return 0x7, true
	case sdl.SCANCODE_S:
		return 0x8, true
	case sdl.SCANCODE_D:
		return 0x9, true
	case sdl.SCANCODE_Z:
		return 0xA, true
	case sdl.SCANCODE_C:
		return 0xB, true
	case sdl.SCANCODE_4:
		return 0xC, true
	case sdl.SCANCODE_R:
		return 0xD, true
	case sdl.SCANCODE_F:
		return 0xE, true
	case sdl.SCANCODE_V:
		return 0xF, true
	default:
		return 0, false
	}
}

// Render blits the machine's screen bitmap to the window. Each row is a
// 64-bit mask with the most significant bit as the leftmost pixel.
func (h *HAL) Render(rows [chip8.ScreenHeight]uint64) error {
	const (
		bgColor = uint32(0xff000000)
		fgColor = uint32(0xffffffff)
	)

	i := 0
	for _, row := range rows {
		for mask := uint64(1) << 63; mask != 0; mask >>= 1 {
			color := bgColor
			if row&mask != 0 {
				color = fgColor
			}
			h.backBuffer[i] = color
			i++
		}
	}

	backBufferPtr := unsafe.Pointer(&h.backBuffer[0])
	if err := h.texture.Update(nil, backBufferPtr, h.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	if err := h.renderer.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := h.renderer.Copy(h.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	h.renderer.Present()
	return nil
}
