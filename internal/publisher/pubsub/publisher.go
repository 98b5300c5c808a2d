// Package pubsub implements a Google Cloud Pub/Sub publisher for ingest
// notifications.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// eventAttribute carries the payload's event name so subscribers can filter
// without decoding the body.
const eventAttribute = "event"

// publishFunc sends one message to a topic and waits for the server id.
type publishFunc func(ctx context.Context, topic string, msg *pubsub.Message) (string, error)

// Publisher wraps a Pub/Sub client and caches topic handles.
type Publisher struct {
	client  *pubsub.Client
	publish publishFunc

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// Dial connects to Pub/Sub for projectID.
func Dial(ctx context.Context, projectID string) (*Publisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return New(client), nil
}

// New creates a Publisher over an existing client.
func New(client *pubsub.Client) *Publisher {
	p := &Publisher{client: client, topics: make(map[string]*pubsub.Topic)}
	p.publish = p.publishToTopic
	return p
}

// Publish marshals the payload to JSON and publishes it to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.publish == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("pubsub topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: attributesFor(payload)}
	id, err := p.publish(ctx, topic, msg)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func (p *Publisher) publishToTopic(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	return p.topic(topic).Publish(ctx, msg).Get(ctx)
}

func (p *Publisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

func attributesFor(payload any) map[string]string {
	attrs := map[string]string{}
	if m, ok := payload.(map[string]any); ok {
		if event, ok := m[eventAttribute].(string); ok && event != "" {
			attrs[eventAttribute] = event
		}
	}
	return attrs
}
