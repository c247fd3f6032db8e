package event_loop

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// idleSleep is how long the loop waits when nothing is queued.
const idleSleep = 100 * time.Millisecond

type CallbackFunc func(el EventLoop)

// EventLoop runs callbacks one at a time on the goroutine that called Run.
type EventLoop interface {
	Run()
	Quit()
	Done() <-chan struct{}
	Put(callback CallbackFunc) bool
	Post(callback CallbackFunc, scheduledBy time.Time) bool
}

type eventPoint struct {
	callback    CallbackFunc
	scheduledBy time.Time
	next        *eventPoint
}

type event_loop struct {
	ctx    context.Context
	cancel context.CancelFunc

	wake chan bool

	mutex          sync.Mutex
	eventQueue     *eventPoint
	eventQueueTail *eventPoint
}

func NewEventLoop() EventLoop {
	ctx, cancel := context.WithCancel(context.Background())
	return &event_loop{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan bool, 1),
	}
}

func (el *event_loop) Run() {
	var sleepDuration time.Duration = 0

	for {
		select {
		case <-el.ctx.Done():
			return
		case <-el.wake:
			sleepDuration = el.processEvents()
		case <-time.After(sleepDuration):
			sleepDuration = el.processEvents()
		}
	}
}

func (el *event_loop) processEvents() time.Duration {
	el.mutex.Lock()
	event := el.eventQueue
	el.eventQueue = nil
	el.eventQueueTail = nil
	el.mutex.Unlock()

	var sleepDuration time.Duration = -1

	for event != nil {
		next := event.next
		event.next = nil

		if el.ctx.Err() != nil {
			// Quit was called by one of the callbacks
			return 0
		}

		if !time.Now().Before(event.scheduledBy) {
			el.invoke(event.callback)

			// The callback may have queued more events
			sleepDuration = 0
		} else {
			postponeBy := time.Until(event.scheduledBy)
			if sleepDuration < 0 || postponeBy < sleepDuration {
				sleepDuration = postponeBy
			}

			el.enqueue(event)
		}

		event = next
	}

	if sleepDuration < 0 {
		sleepDuration = idleSleep
	}

	return sleepDuration
}

func (el *event_loop) invoke(callback CallbackFunc) {
	defer func() {
		if r := recover(); r != nil {
			log.With("panic", r).Error("Event loop callback panicked")
		}
	}()

	callback(el)
}

func (el *event_loop) enqueue(event *eventPoint) {
	el.mutex.Lock()
	defer el.mutex.Unlock()

	if el.eventQueue == nil {
		el.eventQueue = event
		el.eventQueueTail = event
	} else {
		el.eventQueueTail.next = event
		el.eventQueueTail = event
	}
}

func (el *event_loop) wakeUp() {
	select {
	case el.wake <- true:
	default:
		// Already woken up
	}
}

func (el *event_loop) Quit() {
	el.cancel()
}

func (el *event_loop) Done() <-chan struct{} {
	return el.ctx.Done()
}

// Put schedules the callback to run as soon as possible.
func (el *event_loop) Put(callback CallbackFunc) bool {
	return el.Post(callback, time.Now())
}

// Post schedules the callback to run not earlier than scheduledBy.
// Returns false if the loop has already quit.
func (el *event_loop) Post(callback CallbackFunc, scheduledBy time.Time) bool {
	if el.ctx.Err() != nil {
		return false
	}

	el.enqueue(&eventPoint{
		callback:    callback,
		scheduledBy: scheduledBy,
	})
	el.wakeUp()

	return true
}
