package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/metrics"
)

// frameSlot holds the newest rendered image of one slot and its last
// encoding. gen counts publications and clears.
type frameSlot struct {
	mu      sync.Mutex
	pending *image.RGBA
	spare   *image.RGBA
	live    bool
	gen     uint64
	cleared uint64

	encoded    []byte
	encodedGen uint64

	wake    chan struct{}
	limiter *rate.Limiter
}

// Broadcaster turns renderer output into websocket messages: PNG frames per
// slot, clear notices, change batches and diagnostics.
type Broadcaster struct {
	hub     *Hub
	slots   [gamepad.Slots]*frameSlot
	changes chan mapping.Batch
	seq     atomic.Int64
	enc     png.Encoder
}

// NewBroadcaster pushes at most pushRate frames per second to each slot.
func NewBroadcaster(h *Hub, pushRate int) *Broadcaster {
	b := &Broadcaster{
		hub:     h,
		changes: make(chan mapping.Batch, 8),
		enc:     png.Encoder{CompressionLevel: png.BestSpeed},
	}
	for i := range b.slots {
		b.slots[i] = &frameSlot{
			wake:    make(chan struct{}, 1),
			limiter: rate.NewLimiter(rate.Limit(pushRate), 1),
		}
	}
	return b
}

// PublishFrame copies img; the caller may reuse it after return.
func (b *Broadcaster) PublishFrame(slot int, img *image.RGBA) {
	fs := b.slots[slot]
	fs.mu.Lock()
	buf := fs.pending
	if buf == nil {
		buf, fs.spare = fs.spare, nil
	}
	if buf == nil || buf.Rect != img.Rect {
		buf = image.NewRGBA(img.Rect)
	}
	draw.Draw(buf, buf.Rect, img, img.Rect.Min, draw.Src)
	fs.pending = buf
	fs.live = true
	fs.gen++
	fs.mu.Unlock()

	select {
	case fs.wake <- struct{}{}:
	default:
	}
}

// ClearSlot drops the slot's frames and tells its viewers.
func (b *Broadcaster) ClearSlot(slot int) {
	fs := b.slots[slot]
	fs.mu.Lock()
	if fs.pending != nil {
		fs.spare, fs.pending = fs.pending, nil
	}
	fs.encoded = nil
	fs.live = false
	fs.gen++
	fs.cleared = fs.gen
	fs.mu.Unlock()

	b.sendJSON(NewClearMessage(b.seq.Add(1), slot), func(data []byte) {
		b.hub.BroadcastToSlot(websocket.TextMessage, data, slot)
	})
}

// PublishChanges queues a batch for clients watching changes. Batches are
// dropped when the queue is full.
func (b *Broadcaster) PublishChanges(batch mapping.Batch) {
	select {
	case b.changes <- batch:
	default:
		logger.Debugf("change queue full, batch dropped")
	}
}

// SendInitialFrame sends c the newest frame of its slot, or a clear notice
// when the slot is empty.
func (b *Broadcaster) SendInitialFrame(c *Client) {
	slot := c.Slot()
	data, live := b.latest(slot)
	if data != nil {
		c.Send(websocket.BinaryMessage, data)
		return
	}
	if live {
		// the encoder holds the frame and will broadcast it
		return
	}
	b.sendJSON(NewClearMessage(b.seq.Add(1), slot), func(data []byte) {
		c.Send(websocket.TextMessage, data)
	})
}

// Run encodes frames and forwards changes and diagnostics until ctx is done.
func (b *Broadcaster) Run(ctx context.Context, diags <-chan diag.Message) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range b.slots {
		g.Go(func() error {
			b.encodeLoop(ctx, i)
			return nil
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case batch := <-b.changes:
				b.sendJSON(NewChangesMessage(b.seq.Add(1), batch), func(data []byte) {
					b.hub.BroadcastToWatchers(websocket.TextMessage, data)
				})
			case m, ok := <-diags:
				if !ok {
					diags = nil
					continue
				}
				b.sendJSON(NewDiagMessage(b.seq.Add(1), m), func(data []byte) {
					b.hub.Broadcast(websocket.TextMessage, data)
				})
			}
		}
	})
	return g.Wait()
}

func (b *Broadcaster) encodeLoop(ctx context.Context, slot int) {
	fs := b.slots[slot]
	for {
		select {
		case <-ctx.Done():
			return
		case <-fs.wake:
		}
		if err := fs.limiter.Wait(ctx); err != nil {
			return
		}
		if b.hub.Viewers(slot) == 0 {
			// left pending; SendInitialFrame encodes it on demand
			continue
		}
		if data := b.encodePending(slot); data != nil {
			b.hub.BroadcastToSlot(websocket.BinaryMessage, data, slot)
			metrics.FramesPushed.Inc()
		}
	}
}

// latest returns the newest encoded frame of slot, encoding a pending image
// first if there is one, and whether the slot shows a device.
func (b *Broadcaster) latest(slot int) ([]byte, bool) {
	data := b.encodePending(slot)
	fs := b.slots[slot]
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if data == nil {
		data = fs.encoded
	}
	return data, fs.live
}

// encodePending encodes the pending image of slot. It returns nil when there
// is none, or when a newer frame or a clear superseded it meanwhile.
func (b *Broadcaster) encodePending(slot int) []byte {
	fs := b.slots[slot]
	fs.mu.Lock()
	img, gen := fs.pending, fs.gen
	fs.pending = nil
	fs.mu.Unlock()
	if img == nil {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(slot))
	err := b.enc.Encode(&buf, img)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.spare == nil {
		fs.spare = img
	}
	if err != nil {
		logger.Errorf("Error encoding frame for slot %d: %v", slot, err)
		return nil
	}
	if gen <= fs.cleared || gen <= fs.encodedGen {
		return nil
	}
	fs.encoded, fs.encodedGen = buf.Bytes(), gen
	return fs.encoded
}

func (b *Broadcaster) sendJSON(msg *WSMessage, send func([]byte)) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	send(data)
}
