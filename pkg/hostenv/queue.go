package hostenv

import (
	"context"
	"sync"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/ports"
)

// broker is the in-process queue: one buffered channel per topic,
// created on first use. Publish blocks when the topic buffer is full,
// Consume blocks until a message or cancellation.
type broker struct {
	mu     sync.Mutex
	topics map[string]chan []byte
	buffer int
}

func newBroker(buffer int) *broker {
	return &broker{topics: make(map[string]chan []byte), buffer: buffer}
}

func (b *broker) topic(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan []byte, b.buffer)
		b.topics[name] = ch
	}
	return ch
}

// queuePort is the queue binding for one execution. The declared topic
// is the default; an explicit topic argument overrides it per call.
type queuePort struct {
	broker *broker
	topic  string
}

func (h *Host) newQueue(topic string) ports.Queue {
	return &queuePort{broker: h.broker, topic: topic}
}

func (q *queuePort) resolveTopic(topic string) (string, error) {
	if topic != "" {
		return topic, nil
	}
	if q.topic != "" {
		return q.topic, nil
	}
	return "", fault.Effect("no topic declared or given", nil).WithPort("queue")
}

func (q *queuePort) Publish(ctx context.Context, topic string, msg []byte) error {
	name, err := q.resolveTopic(topic)
	if err != nil {
		return err
	}
	select {
	case q.broker.topic(name) <- append([]byte(nil), msg...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *queuePort) Consume(ctx context.Context, topic string) ([]byte, error) {
	name, err := q.resolveTopic(topic)
	if err != nil {
		return nil, err
	}
	select {
	case msg := <-q.broker.topic(name):
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
