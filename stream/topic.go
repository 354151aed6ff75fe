package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Topic names:
//
//	task:<taskID>   events for one task
//	queue:<name>    task events on one queue
//	tasks           all task events
//	chains          all chain failure events
//	firehose        everything
const (
	TopicTasks    = "tasks"
	TopicChains   = "chains"
	TopicFirehose = "firehose"
)

// TaskTopic returns the topic name for one task.
func TaskTopic(taskID string) string { return "task:" + taskID }

// QueueTopic returns the topic name for a queue.
func QueueTopic(queue string) string { return "queue:" + queue }

// TopicRegistry maps topics to their subscribers.
// It is safe for concurrent use.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber
}

// NewTopicRegistry creates an empty topic registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{topics: make(map[string]map[string]*Subscriber)}
}

// Subscribe adds sub to topic.
func (tr *TopicRegistry) Subscribe(topic string, sub *Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	subs, ok := tr.topics[topic]
	if !ok {
		subs = make(map[string]*Subscriber)
		tr.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes a subscriber from topic and drops empty topics.
func (tr *TopicRegistry) Unsubscribe(topic, subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.unsubscribe(topic, subscriberID)
}

// UnsubscribeAll removes a subscriber from every topic.
func (tr *TopicRegistry) UnsubscribeAll(subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for topic := range tr.topics {
		tr.unsubscribe(topic, subscriberID)
	}
}

func (tr *TopicRegistry) unsubscribe(topic, subscriberID string) {
	subs, ok := tr.topics[topic]
	if !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(tr.topics, topic)
	}
}

// Broadcast sends evt once to every subscriber of any of topics and
// returns how many accepted it.
func (tr *TopicRegistry) Broadcast(topics []string, evt *Event) int {
	tr.mu.RLock()
	seen := make(map[string]*Subscriber)
	for _, topic := range topics {
		for id, sub := range tr.topics[topic] {
			seen[id] = sub
		}
	}
	tr.mu.RUnlock()

	delivered := 0
	for _, sub := range seen {
		if sub.send(evt) {
			delivered++
		}
	}
	return delivered
}

// TopicCount returns the number of topics with subscribers.
func (tr *TopicRegistry) TopicCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics)
}

// SubscriberCount returns the number of subscribers on topic.
func (tr *TopicRegistry) SubscriberCount(topic string) int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics[topic])
}

// resolveTopics lists the topics evt is delivered on.
func resolveTopics(evt *Event) []string {
	topics := []string{TopicFirehose}
	switch {
	case strings.HasPrefix(string(evt.Type), "task."):
		topics = append(topics, TopicTasks)
	case strings.HasPrefix(string(evt.Type), "chain."):
		topics = append(topics, TopicChains)
	}
	if evt.Topic != "" {
		topics = append(topics, evt.Topic)
	}
	if evt.Queue != "" {
		topics = append(topics, QueueTopic(evt.Queue))
	}
	return topics
}

// ValidateTopic reports whether topic names a known topic.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicTasks, TopicChains, TopicFirehose:
		return nil
	}
	kind, name, ok := strings.Cut(topic, ":")
	if !ok || name == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}
	switch kind {
	case "task", "queue":
		return nil
	}
	return fmt.Errorf("stream: unknown topic kind %q", kind)
}
