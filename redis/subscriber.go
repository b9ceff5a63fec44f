package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Message is one inbound pub/sub notification. For keyspace events the
// channel carries the affected key and the payload carries the action.
type Message struct {
	Channel string
	Payload string
}

// Subscriber wraps a pub/sub stream. Channels are added and removed with
// Listen and Forget; Messages exposes the inbound stream.
type Subscriber struct {
	pubsub *redis.PubSub
	out    chan Message
}

func newSubscriber(pubsub *redis.PubSub) *Subscriber {
	s := &Subscriber{
		pubsub: pubsub,
		out:    make(chan Message),
	}
	go s.receiveLoop()
	return s
}

// Listen subscribes to a channel.
func (s *Subscriber) Listen(ctx context.Context, channel string) error {
	if err := s.pubsub.Subscribe(ctx, channel); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	return nil
}

// Forget unsubscribes from a channel.
func (s *Subscriber) Forget(ctx context.Context, channel string) error {
	if err := s.pubsub.Unsubscribe(ctx, channel); err != nil {
		return fmt.Errorf("redis unsubscribe %s: %w", channel, err)
	}
	return nil
}

// Messages returns the inbound stream. The channel closes when the
// subscriber is closed.
func (s *Subscriber) Messages() <-chan Message {
	return s.out
}

// Close terminates the subscription connection. The stream from Messages
// closes once any message already received has been read.
func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}

func (s *Subscriber) receiveLoop() {
	defer close(s.out)
	ch := s.pubsub.Channel()
	for msg := range ch {
		s.out <- Message{Channel: msg.Channel, Payload: msg.Payload}
	}
}
