package event_loop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	eventLoop := NewEventLoop()

	done := make(chan bool, 1)

	go func() {
		eventLoop.Run()
		done <- true
	}()

	// Wait for goroutine to start
	<-time.After(100 * time.Millisecond)

	eventLoop.Quit()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}

	select {
	case <-eventLoop.Done():
	default:
		t.Error("Done channel is not closed")
	}
}

func TestPutEvents(t *testing.T) {
	eventLoop := NewEventLoop()

	go eventLoop.Run()

	var counter atomic.Int32

	eventLoop.Put(func(el EventLoop) {
		counter.Add(1)

		el.Put(func(el EventLoop) {
			counter.Add(2)

			el.Quit()
		})
	})

	<-time.After(100 * time.Millisecond)

	assert.Equal(t, int32(3), counter.Load())
}

func TestPostAfterQuit(t *testing.T) {
	eventLoop := NewEventLoop()
	eventLoop.Quit()

	assert.False(t, eventLoop.Put(func(el EventLoop) {}))
	assert.False(t, eventLoop.Post(func(el EventLoop) {}, time.Now().Add(time.Second)))
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	eventLoop := NewEventLoop()

	go eventLoop.Run()
	defer eventLoop.Quit()

	reached := make(chan bool, 1)

	eventLoop.Put(func(el EventLoop) {
		panic("boom")
	})
	eventLoop.Put(func(el EventLoop) {
		reached <- true
	})

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("event after a panicking callback was not run")
	}
}

func TestCallbacksDoNotOverlap(t *testing.T) {
	eventLoop := NewEventLoop()

	go eventLoop.Run()
	defer eventLoop.Quit()

	var active atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go eventLoop.Put(func(el EventLoop) {
			defer wg.Done()
			if active.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}

	wg.Wait()
	assert.False(t, overlapped.Load())
}

func TestPostEvents(t *testing.T) {
	eventLoop := NewEventLoop()

	done := make(chan bool, 1)
	go func() {
		eventLoop.Run()
		done <- true
	}()
	defer eventLoop.Quit()

	now := time.Now()

	var mutex sync.Mutex
	var timepoints []time.Time
	var expectedTimepoints []time.Time

	for i := range 5 {
		scheduledBy := now.Add(time.Duration(i) * 200 * time.Millisecond)
		eventLoop.Post(func(el EventLoop) {
			mutex.Lock()
			defer mutex.Unlock()
			timepoints = append(timepoints, time.Now())

			if i == 4 {
				// Last event to terminate the event loop
				el.Quit()
			}
		}, scheduledBy)

		expectedTimepoints = append(expectedTimepoints, scheduledBy)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Errorf("Event loop is still running")
	}

	mutex.Lock()
	defer mutex.Unlock()

	assert.Equal(t, 5, len(timepoints))

	for i := range timepoints {
		assert.True(t, timepoints[i].Sub(expectedTimepoints[i]).Abs() < 50*time.Millisecond)
	}
}
