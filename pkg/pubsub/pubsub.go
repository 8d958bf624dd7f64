// Package pubsub delivers page notifications (language changes, tab
// selections, content reloads) to in-process subscribers.
package pubsub

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Topics.
const (
	TopicLanguageChange = "language.change"
	TopicTabChange      = "tab.change"
	TopicContentReload  = "content.reload"
)

// channelWrapper wraps a channel with sync.Once for safe closing.
type channelWrapper struct {
	ch        chan []byte
	closeOnce sync.Once
}

func newChannelWrapper(size int) *channelWrapper {
	return &channelWrapper{
		ch: make(chan []byte, size),
	}
}

func (cw *channelWrapper) close() {
	cw.closeOnce.Do(func() {
		close(cw.ch)
	})
}

// Common pubsub errors.
var (
	ErrPubSubClosed = errors.New("pubsub is closed")
)

// PubSub is the interface for pub/sub implementations.
type PubSub interface {
	// Subscribe adds a handler for a topic.
	Subscribe(topic string, handler func(msg []byte)) (Subscription, error)

	// Publish sends a message to all subscribers of a topic.
	Publish(topic string, msg []byte) error

	// Close shuts down the pubsub system.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes this subscription.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// Option configures a MemoryPubSub.
type Option func(*MemoryPubSub)

// WithLogger sets the logger used for handler panics and dropped messages.
func WithLogger(l logging.Logger) Option {
	return func(ps *MemoryPubSub) {
		ps.logger = logging.OrNop(l)
	}
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(ps *MemoryPubSub) {
		if n > 0 {
			ps.buffer = n
		}
	}
}

// MemoryPubSub is an in-memory pub/sub implementation. Each subscriber has
// its own goroutine and receives messages in publish order.
type MemoryPubSub struct {
	topics map[string]map[string]*channelWrapper
	subs   map[string]*memorySubscription
	nextID int
	closed bool
	mu     sync.RWMutex

	buffer int
	logger logging.Logger
	wg     sync.WaitGroup
}

// NewMemoryPubSub creates a new in-memory pub/sub.
func NewMemoryPubSub(opts ...Option) *MemoryPubSub {
	ps := &MemoryPubSub{
		topics: make(map[string]map[string]*channelWrapper),
		subs:   make(map[string]*memorySubscription),
		buffer: 256,
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(ps)
	}
	return ps
}

// Subscribe adds a handler for a topic.
func (ps *MemoryPubSub) Subscribe(topic string, handler func(msg []byte)) (Subscription, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrPubSubClosed
	}

	if ps.topics[topic] == nil {
		ps.topics[topic] = make(map[string]*channelWrapper)
	}

	ps.nextID++
	subID := topic + "-" + strconv.Itoa(ps.nextID)

	chWrapper := newChannelWrapper(ps.buffer)
	ps.topics[topic][subID] = chWrapper

	sub := &memorySubscription{
		id:        subID,
		topic:     topic,
		ps:        ps,
		chWrapper: chWrapper,
	}
	ps.subs[subID] = sub

	ps.wg.Add(1)
	go ps.deliver(sub, handler)

	return sub, nil
}

func (ps *MemoryPubSub) deliver(sub *memorySubscription, handler func([]byte)) {
	defer ps.wg.Done()
	for msg := range sub.chWrapper.ch {
		if sub.closed.Load() {
			return
		}
		ps.call(sub.topic, handler, msg)
	}
}

func (ps *MemoryPubSub) call(topic string, handler func([]byte), msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			ps.logger.Error("pubsub handler panic",
				logging.String("topic", topic), logging.Any("panic", r))
		}
	}()
	handler(msg)
}

// Publish sends a message to all subscribers of a topic. A subscriber whose
// queue is full misses the message.
func (ps *MemoryPubSub) Publish(topic string, msg []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.closed {
		return ErrPubSubClosed
	}

	subscribers := ps.topics[topic]
	if subscribers == nil {
		return nil
	}

	msgCopy := make([]byte, len(msg))
	copy(msgCopy, msg)

	for subID, chWrapper := range subscribers {
		if sub := ps.subs[subID]; sub != nil && sub.closed.Load() {
			continue
		}

		select {
		case chWrapper.ch <- msgCopy:
		default:
			ps.logger.Warn("pubsub message dropped", logging.String("topic", topic))
		}
	}

	return nil
}

// Close shuts down the pubsub system and waits for handlers to return.
func (ps *MemoryPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true

	for _, subscribers := range ps.topics {
		for _, chWrapper := range subscribers {
			chWrapper.close()
		}
	}
	ps.topics = make(map[string]map[string]*channelWrapper)
	ps.subs = make(map[string]*memorySubscription)
	ps.mu.Unlock()

	ps.wg.Wait()
	return nil
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *MemoryPubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.topics[topic])
}

type memorySubscription struct {
	id        string
	topic     string
	ps        *MemoryPubSub
	chWrapper *channelWrapper
	closed    atomic.Bool
}

// Unsubscribe removes this subscription. Safe to call more than once and
// concurrently with Publish and Close.
func (s *memorySubscription) Unsubscribe() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()

	if subscribers := s.ps.topics[s.topic]; subscribers != nil {
		delete(subscribers, s.id)
		if len(subscribers) == 0 {
			delete(s.ps.topics, s.topic)
		}
	}
	delete(s.ps.subs, s.id)

	s.chWrapper.close()
	return nil
}

func (s *memorySubscription) Topic() string {
	return s.topic
}

// Event is a decoded notification.
type Event struct {
	Name    string         `msgpack:"event"`
	Payload map[string]any `msgpack:"payload"`
}

// Broadcaster publishes and subscribes to named events, MessagePack
// encoded.
type Broadcaster struct {
	pubsub PubSub
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(ps PubSub) *Broadcaster {
	return &Broadcaster{pubsub: ps}
}

// Broadcast sends event with payload to topic.
func (b *Broadcaster) Broadcast(topic, event string, payload map[string]any) error {
	data, err := msgpack.Marshal(Event{Name: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("pubsub: encode %s: %w", topic, err)
	}
	return b.pubsub.Publish(topic, data)
}

// Subscribe subscribes to a topic with an event handler. Undecodable
// messages are skipped.
func (b *Broadcaster) Subscribe(topic string, handler func(Event)) (Subscription, error) {
	return b.pubsub.Subscribe(topic, func(msg []byte) {
		var ev Event
		if err := msgpack.Unmarshal(msg, &ev); err != nil {
			return
		}
		handler(ev)
	})
}

// LanguageChanged notifies that a render pass finished in lang.
func (b *Broadcaster) LanguageChanged(lang string) error {
	return b.Broadcast(TopicLanguageChange, "changed", map[string]any{"language": lang})
}

// TabChanged notifies an explicit tab selection.
func (b *Broadcaster) TabChanged(section, tab string) error {
	return b.Broadcast(TopicTabChange, "selected", map[string]any{"section": section, "tab": tab})
}

// ContentReloaded notifies that content files were loaded again.
func (b *Broadcaster) ContentReloaded(langs []string) error {
	return b.Broadcast(TopicContentReload, "reloaded", map[string]any{"languages": langs})
}

// String returns payload[key] when it is a string.
func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}
