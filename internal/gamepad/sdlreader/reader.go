//go:build sdl

// Package sdlreader reads native joysticks through SDL3. The SDL bindings
// load libSDL3 when the program starts, so the reader is only compiled in
// with the sdl build tag.
package sdlreader

import (
	"context"
	"math"
	"runtime"

	"github.com/jupiterrider/purego-sdl3/sdl"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/metrics"
)

const (
	pollDelayNS = 16_000_000 // ~60Hz
	minAxes     = gamepad.HatAxis + 1
)

type joystickInfo struct {
	joystick    *sdl.Joystick
	name        string
	fingerprint string
	slot        int
}

// Reader polls native joysticks through SDL3 and produces snapshots laid
// out like the browser's Gamepad API: axes normalised to [-1,1] and the
// first hat encoded on axis 9.
type Reader struct {
	joysticks map[sdl.JoystickID]*joystickInfo
	slots     [gamepad.Slots]sdl.JoystickID
	occupied  [gamepad.Slots]bool
	frames    gamepad.Sink

	// OnInit runs on the SDL thread right after SDL initialized.
	OnInit func()
}

// NewReader creates a Reader that delivers snapshots into frames.
func NewReader(frames gamepad.Sink) *Reader {
	return &Reader{
		joysticks: make(map[sdl.JoystickID]*joystickInfo),
		frames:    frames,
	}
}

// Run initializes SDL and runs the event and polling loop until ctx is
// done. SDL must stay on one OS thread, so Run locks the calling goroutine.
func (r *Reader) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return errors.Errorf("SDL init failed: %s", sdl.GetError())
	}
	defer sdl.Quit()

	logger.Infof("SDL3 joystick subsystem initialized")
	if r.OnInit != nil {
		r.OnInit()
	}

	for _, id := range sdl.GetJoysticks() {
		r.openJoystick(id)
	}

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		default:
		}

		r.processEvents()
		r.frames.Put(r.snapshot())
		metrics.SnapshotsReceived.WithLabelValues("sdl").Inc()
		sdl.DelayNS(pollDelayNS)
	}
}

func (r *Reader) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			r.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			r.removeJoystick(event.JDevice().Which)
		}
	}
}

func (r *Reader) openJoystick(instanceID sdl.JoystickID) {
	if _, exists := r.joysticks[instanceID]; exists {
		return
	}

	slot := r.freeSlot()
	if slot < 0 {
		logger.Warnf("Ignoring joystick %d: all %d slots are in use", instanceID, gamepad.Slots)
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		logger.Warnf("Failed to open joystick %d: %s", instanceID, sdl.GetError())
		return
	}

	jsID := sdl.GetJoystickID(js)
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	info := &joystickInfo{
		joystick:    js,
		name:        sdl.GetJoystickName(js),
		fingerprint: gamepad.DeviceFingerprint(vendorID, productID),
		slot:        slot,
	}
	r.joysticks[jsID] = info
	r.slots[slot] = jsID
	r.occupied[slot] = true

	logger.Infof("Joystick connected: %s (VID=%04X PID=%04X) slot=%d axes=%d buttons=%d hats=%d",
		info.name, vendorID, productID, slot,
		sdl.GetNumJoystickAxes(js), sdl.GetNumJoystickButtons(js), sdl.GetNumJoystickHats(js))
}

func (r *Reader) removeJoystick(instanceID sdl.JoystickID) {
	info, exists := r.joysticks[instanceID]
	if !exists {
		return
	}

	logger.Infof("Joystick disconnected: %s (slot %d)", info.name, info.slot)
	sdl.CloseJoystick(info.joystick)
	delete(r.joysticks, instanceID)
	r.occupied[info.slot] = false
}

func (r *Reader) freeSlot() int {
	for i, used := range r.occupied {
		if !used {
			return i
		}
	}
	return -1
}

func (r *Reader) closeAll() {
	for id, info := range r.joysticks {
		sdl.CloseJoystick(info.joystick)
		delete(r.joysticks, id)
	}
	r.occupied = [gamepad.Slots]bool{}
}

func (r *Reader) snapshot() gamepad.Snapshot {
	var s gamepad.Snapshot
	for slot := 0; slot < gamepad.Slots; slot++ {
		if !r.occupied[slot] {
			continue
		}
		info := r.joysticks[r.slots[slot]]
		if info == nil || !sdl.JoystickConnected(info.joystick) {
			continue
		}
		s[slot] = r.readJoystick(info)
	}
	return s
}

func (r *Reader) readJoystick(info *joystickInfo) *gamepad.Gamepad {
	js := info.joystick
	g := &gamepad.Gamepad{
		// the fingerprint is embedded the way Chrome formats ids
		ID:    info.name + " (Vendor: " + info.fingerprint[:4] + " Product: " + info.fingerprint[4:] + ")",
		Index: info.slot,
	}

	numAxes := sdl.GetNumJoystickAxes(js)
	axes := int(numAxes)
	if axes < minAxes {
		axes = minAxes
	}
	g.Axes = make([]float64, axes)
	for i := int32(0); i < numAxes; i++ {
		g.Axes[i] = normalizeAxis(sdl.GetJoystickAxis(js, i))
	}
	g.Axes[gamepad.HatAxis] = gamepad.HatNeutral
	if sdl.GetNumJoystickHats(js) > 0 {
		g.Axes[gamepad.HatAxis] = gamepad.HatAxisValue(sdl.GetJoystickHat(js, 0))
	}

	numButtons := sdl.GetNumJoystickButtons(js)
	g.Buttons = make([]gamepad.Button, numButtons)
	for i := int32(0); i < numButtons; i++ {
		pressed := sdl.GetJoystickButton(js, i)
		g.Buttons[i].Pressed = pressed
		if pressed {
			g.Buttons[i].Value = 1
		}
	}
	return g
}

// normalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func normalizeAxis(raw int16) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	return v
}
