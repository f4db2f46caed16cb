package input

import (
	"context"
	"sync"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/argus-labs/cardinal-extras/pkg/view"
	"github.com/gdamore/tcell/v2"
	"github.com/jakecoffman/cp"
)

const listenBuffer = 64

// trackedButtons are the mouse buttons that get press and release tracking. Wheel events are
// ignored.
var trackedButtons = []tcell.ButtonMask{tcell.ButtonPrimary, tcell.ButtonSecondary, tcell.ButtonMiddle}

// Terminal queues tcell events until the drain system turns them into button state, the primary
// window's cursor and size, and view.CursorMoved events.
//
// Terminals don't report key releases, so a key is held for exactly the frame it was pressed in and
// released at the start of the next one.
type Terminal struct {
	mu     sync.Mutex
	queue  []tcell.Event
	tapped []tcell.Key
	runes  []rune
	mouse  tcell.ButtonMask
}

// NewTerminal returns an empty terminal adapter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Feed queues ev. It's safe to call from any goroutine.
func (t *Terminal) Feed(ev tcell.Event) {
	if ev == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, ev)
}

// Listen feeds every event from screen until ctx is done or the screen is finalized.
func (t *Terminal) Listen(ctx context.Context, screen tcell.Screen) error {
	events := make(chan tcell.Event, listenBuffer)
	quit := make(chan struct{})
	defer close(quit)
	go screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			t.Feed(ev)
		}
	}
}

func (t *Terminal) take() []tcell.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	queue := t.queue
	t.queue = nil
	return queue
}

type primaryWindow = struct {
	Window ecs.Ref[view.Window]
}

type drainState struct {
	Keys    ecs.ResMut[Keys]
	Runes   ecs.ResMut[Runes]
	Mouse   ecs.ResMut[MouseButtons]
	Windows ecs.Contains[primaryWindow]
	Moved   ecs.WithEventEmitter[view.CursorMoved]
}

func (t *Terminal) drainSystem() ecs.Runnable {
	state := &drainState{Windows: ecs.NewContains[primaryWindow](ecs.With[view.PrimaryWindow]())}
	return ecs.NewSystem("input.DrainTerminal", state, t.drain)
}

func (t *Terminal) drain(state *drainState) error {
	keys, runes, mouse := state.Keys.Get(), state.Runes.Get(), state.Mouse.Get()

	for _, key := range t.tapped {
		keys.Release(key)
	}
	for _, r := range t.runes {
		runes.Release(r)
	}
	t.tapped, t.runes = t.tapped[:0], t.runes[:0]

	for _, ev := range t.take() {
		switch ev := ev.(type) {
		case *tcell.EventKey:
			keys.Press(ev.Key())
			t.tapped = append(t.tapped, ev.Key())
			if ev.Key() == tcell.KeyRune {
				runes.Press(ev.Rune())
				t.runes = append(t.runes, ev.Rune())
			}
		case *tcell.EventMouse:
			t.updateMouse(mouse, ev.Buttons())
			x, y := ev.Position()
			t.moveCursor(state, cp.Vector{X: float64(x), Y: float64(y)})
		case *tcell.EventResize:
			w, h := ev.Size()
			if _, win, ok := state.Windows.Single(); ok {
				window := win.Window.Get()
				window.Width, window.Height = float64(w), float64(h)
				win.Window.Set(window)
			}
		}
	}
	return nil
}

func (t *Terminal) updateMouse(mouse *MouseButtons, now tcell.ButtonMask) {
	for _, button := range trackedButtons {
		was, is := t.mouse&button != 0, now&button != 0
		switch {
		case is && !was:
			mouse.Press(button)
		case was && !is:
			mouse.Release(button)
		}
	}
	t.mouse = now
}

func (t *Terminal) moveCursor(state *drainState, pos cp.Vector) {
	eid, win, ok := state.Windows.Single()
	if !ok {
		return
	}
	window := win.Window.Get()
	if window.Cursor != nil && *window.Cursor == pos {
		return
	}
	window.Cursor = &pos
	win.Window.Set(window)
	state.Moved.Emit(view.CursorMoved{Window: eid, Position: pos})
}
