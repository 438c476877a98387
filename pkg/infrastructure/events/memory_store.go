package events

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// InMemoryEventStore keeps every stream in memory and delivers events to
// subscribers synchronously, in subscription order, after the append
// commits. A failing handler is logged and does not stop the others.
type InMemoryEventStore struct {
	streams     map[string][]Event
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	position    int
	allEvents   []Event
	logger      *zap.SugaredLogger
}

func NewInMemoryEventStore(logger *zap.SugaredLogger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		logger:      logger,
	}
}

func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()

	eventWithVersion := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}

	s.streams[streamID] = append(s.streams[streamID], eventWithVersion)
	s.allEvents = append(s.allEvents, eventWithVersion)
	s.position++

	handlers := make([]EventHandler, 0, len(s.subscribers[event.Type()])+len(s.subscribers["*"]))
	handlers = append(handlers, s.subscribers[event.Type()]...)
	handlers = append(handlers, s.subscribers["*"]...)
	s.mutex.Unlock()

	s.notify(handlers, eventWithVersion)
	return nil
}

func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(events) {
		return []Event{}, nil
	}

	out := make([]Event, len(events)-fromVersion+1)
	copy(out, events[fromVersion-1:])
	return out, nil
}

func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}

	if fromPosition >= len(s.allEvents) {
		return []Event{}, nil
	}

	out := make([]Event, len(s.allEvents)-fromPosition)
	copy(out, s.allEvents[fromPosition:])
	return out, nil
}

// Subscribe registers handler for eventTypes; "*" matches every type.
// Handlers are matched by equality on delivery and on Unsubscribe, so a
// handler whose concrete type is not comparable is refused.
func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	if handler == nil {
		return errors.New("subscribe: nil handler")
	}
	if t := reflect.TypeOf(handler); !t.Comparable() {
		return errors.Newf("subscribe: handler type %s is not comparable, pass a pointer", t)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0)
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}

func (s *InMemoryEventStore) notify(handlers []EventHandler, event Event) {
	seen := make(map[EventHandler]bool, len(handlers))
	for _, handler := range handlers {
		if seen[handler] || !handler.CanHandle(event.Type()) {
			continue
		}
		seen[handler] = true
		if err := handler.Handle(event); err != nil {
			s.logger.Warnw("event handler failed", "event", event.Type(), "stream", event.StreamID(), "error", err)
		}
	}
}
