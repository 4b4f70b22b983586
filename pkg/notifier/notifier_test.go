// Copyright Contributors to the Open Cluster Management project
package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// collector records tags and signals each delivery, so tests can wait
// without sleeping arbitrary durations.
type collector struct {
	mu      sync.Mutex
	tags    []string
	arrived chan struct{}
}

func newCollector() *collector {
	return &collector{arrived: make(chan struct{}, 100)}
}

func (c *collector) callback(tag string) {
	c.mu.Lock()
	c.tags = append(c.tags, tag)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *collector) wait(t *testing.T, count int) []string {
	t.Helper()
	for i := 0; i < count; i++ {
		select {
		case <-c.arrived:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, count)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.tags...)
}

func Test_Notifier_deliversToAllSubscribers(t *testing.T) {
	n := New()
	n.Start()
	defer n.Stop()

	first := newCollector()
	second := newCollector()
	n.Subscribe("first", first.callback)
	n.Subscribe("second", second.callback)

	n.Publish("roles")

	assert.Equal(t, []string{"roles"}, first.wait(t, 1))
	assert.Equal(t, []string{"roles"}, second.wait(t, 1))
}

func Test_Notifier_ordered(t *testing.T) {
	n := New()
	n.Start()
	defer n.Stop()

	c := newCollector()
	n.Subscribe("c", c.callback)

	n.Publish("one")
	n.Publish("two")
	n.Publish("three")

	assert.Equal(t, []string{"one", "two", "three"}, c.wait(t, 3))
}

func Test_Notifier_publishBeforeStartIsNoop(t *testing.T) {
	n := New()
	c := newCollector()
	n.Subscribe("c", c.callback)

	n.Publish("dropped")
	n.Start()
	defer n.Stop()
	n.Publish("delivered")

	assert.Equal(t, []string{"delivered"}, c.wait(t, 1))
}

func Test_Notifier_unsubscribeStopsDelivery(t *testing.T) {
	n := New()
	n.Start()
	defer n.Stop()

	gone := newCollector()
	kept := newCollector()
	n.Subscribe("gone", gone.callback)
	n.Subscribe("kept", kept.callback)
	n.Unsubscribe("gone")

	n.Publish("roles")

	assert.Equal(t, []string{"roles"}, kept.wait(t, 1))
	gone.mu.Lock()
	defer gone.mu.Unlock()
	assert.Empty(t, gone.tags)
}

func Test_Notifier_panickingSubscriberIsIsolated(t *testing.T) {
	n := New()
	n.Start()
	defer n.Stop()

	n.Subscribe("bad", func(tag string) { panic("subscriber bug") })
	c := newCollector()
	n.Subscribe("good", c.callback)

	n.Publish("roles")

	assert.Equal(t, []string{"roles"}, c.wait(t, 1))
}

func Test_Notifier_startIdempotent(t *testing.T) {
	n := New()
	n.Start()
	n.Start()
	defer n.Stop()

	c := newCollector()
	n.Subscribe("c", c.callback)
	n.Publish("roles")

	// A duplicate Start must not spawn a second worker delivering twice.
	assert.Equal(t, []string{"roles"}, c.wait(t, 1))
	select {
	case <-c.arrived:
		t.Fatal("event delivered more than once")
	case <-time.After(50 * time.Millisecond):
	}
}
