package twai

import "sync"

// EventHandler receives every controller event. Bind one with
// Handlers.SetEventHandler when a single stateful value should observe the
// controller.
type EventHandler interface {
	BusRecovered()
	RxQueueFull()
	BusOff()
	Message(m Message)
}

// Handlers holds one handler per event kind. Registering a handler replaces
// the previous one; the change applies from the next dispatch. A nil
// handler unregisters the event.
type Handlers struct {
	mu           sync.RWMutex
	busRecovered func()
	rxQueueFull  func()
	busOff       func()
	message      func(Message)
}

// OnBusRecovered sets the handler run after bus recovery completes.
func (h *Handlers) OnBusRecovered(fn func()) {
	h.mu.Lock()
	h.busRecovered = fn
	h.mu.Unlock()
}

// OnRxQueueFull sets the handler run before a full receive queue is cleared.
func (h *Handlers) OnRxQueueFull(fn func()) {
	h.mu.Lock()
	h.rxQueueFull = fn
	h.mu.Unlock()
}

// OnBusOff sets the handler run when the controller goes bus-off.
func (h *Handlers) OnBusOff(fn func()) {
	h.mu.Lock()
	h.busOff = fn
	h.mu.Unlock()
}

// OnMessage sets the handler run for every message drained by Poll.
func (h *Handlers) OnMessage(fn func(Message)) {
	h.mu.Lock()
	h.message = fn
	h.mu.Unlock()
}

// SetEventHandler binds all four events to eh, replacing any registered
// handlers. A nil eh clears them.
func (h *Handlers) SetEventHandler(eh EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if eh == nil {
		h.busRecovered, h.rxQueueFull, h.busOff, h.message = nil, nil, nil, nil
		return
	}
	h.busRecovered = eh.BusRecovered
	h.rxQueueFull = eh.RxQueueFull
	h.busOff = eh.BusOff
	h.message = eh.Message
}

// handlerSet is a point-in-time copy used for one dispatch.
type handlerSet struct {
	busRecovered func()
	rxQueueFull  func()
	busOff       func()
	message      func(Message)
}

func (h *Handlers) snapshot() handlerSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return handlerSet{
		busRecovered: h.busRecovered,
		rxQueueFull:  h.rxQueueFull,
		busOff:       h.busOff,
		message:      h.message,
	}
}
