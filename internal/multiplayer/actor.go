package multiplayer

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const mailboxSize = 256

var errHandlerPanic = errors.New("multiplayer: handler panicked")

// actor serializes everything a room does onto one goroutine.
// Messages, deferred callbacks and ticks are executed strictly one at a
// time in arrival order.
type actor struct {
	logger  *log.Logger
	mailbox chan func()
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once

	timersMu  sync.Mutex
	timers    map[uint64]*time.Timer
	nextTimer uint64

	tickInterval time.Duration
	onTick       func()
	afterEach    func()
	onStop       func()
}

func newActor(logger *log.Logger, tickInterval time.Duration) *actor {
	ctx, cancel := context.WithCancel(context.Background())
	return &actor{
		logger:       logger,
		mailbox:      make(chan func(), mailboxSize),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		timers:       make(map[uint64]*time.Timer),
		tickInterval: tickInterval,
	}
}

// run is the actor loop. It returns once the actor is stopped.
func (a *actor) run() {
	var tickC <-chan time.Time
	if a.tickInterval > 0 && a.onTick != nil {
		ticker := time.NewTicker(a.tickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if a.stopped() {
			return
		}
		select {
		case fn := <-a.mailbox:
			a.exec(fn)
		case <-tickC:
			a.exec(a.onTick)
		case <-a.done:
			return
		}
	}
}

// exec runs one unit of work. A panic is contained to that unit and logged
// so it cannot take down the loop or affect other connections.
func (a *actor) exec(fn func()) {
	if a.stopped() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if a.afterEach != nil && !a.stopped() {
			a.afterEach()
		}
	}()
	fn()
}

// post enqueues fn for execution on the actor goroutine.
// Returns false if the actor has stopped.
func (a *actor) post(fn func()) bool {
	select {
	case <-a.done:
		return false
	default:
	}

	select {
	case a.mailbox <- fn:
		return true
	case <-a.done:
		return false
	}
}

// call runs fn on the actor goroutine and waits for its result. The
// afterEach hook has run by the time call returns, so published state
// reflects fn. Must never be called from the actor goroutine itself.
func (a *actor) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	ok := a.post(func() {
		err := errHandlerPanic
		defer func() { result <- err }()
		err = fn()
		if a.afterEach != nil && !a.stopped() {
			a.afterEach()
		}
	})
	if !ok {
		return ErrRoomClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// schedule runs fn on the actor goroutine after d. The returned cancel
// function is idempotent and safe to call after the actor has stopped.
// A callback that fires after stop is dropped.
func (a *actor) schedule(d time.Duration, fn func()) (cancel func()) {
	a.timersMu.Lock()
	defer a.timersMu.Unlock()

	if a.stopped() {
		return func() {}
	}

	a.nextTimer++
	id := a.nextTimer
	a.timers[id] = time.AfterFunc(d, func() {
		a.post(func() {
			if a.takeTimer(id) {
				fn()
			}
		})
	})

	return func() {
		a.timersMu.Lock()
		defer a.timersMu.Unlock()
		if t, ok := a.timers[id]; ok {
			t.Stop()
			delete(a.timers, id)
		}
	}
}

// takeTimer removes a fired timer. Returns false if it was cancelled meanwhile.
func (a *actor) takeTimer(id uint64) bool {
	a.timersMu.Lock()
	defer a.timersMu.Unlock()
	if _, ok := a.timers[id]; !ok {
		return false
	}
	delete(a.timers, id)
	return true
}

// pendingTimers returns how many deferred callbacks are still armed.
func (a *actor) pendingTimers() int {
	a.timersMu.Lock()
	defer a.timersMu.Unlock()
	return len(a.timers)
}

// stop halts the loop and cancels every pending deferred callback.
// Safe to call multiple times and from any goroutine.
func (a *actor) stop() {
	a.stopOnce.Do(func() {
		a.timersMu.Lock()
		for id, t := range a.timers {
			t.Stop()
			delete(a.timers, id)
		}
		close(a.done)
		a.timersMu.Unlock()

		a.cancel()
		if a.onStop != nil {
			a.onStop()
		}
	})
}

func (a *actor) stopped() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the room is disposed.
func (a *actor) Done() <-chan struct{} {
	return a.done
}
