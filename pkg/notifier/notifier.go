// Copyright Contributors to the Open Cluster Management project
package notifier

import (
	"sync"

	"k8s.io/klog/v2"
)

const eventBufferSize = 100

type subscription struct {
	id       string
	callback func(tag string)
}

// ReloadNotifier fans out "the enforcement layer just reloaded the ACL
// documents" events to subscribers. Publish never blocks the caller that
// detected the reload; events are handed to a single worker goroutine and
// each callback is isolated so one bad subscriber can't stop the others.
type ReloadNotifier struct {
	mu            sync.RWMutex
	subscriptions []*subscription
	events        chan string
	done          chan struct{}
	started       bool
}

func New() *ReloadNotifier {
	return &ReloadNotifier{
		subscriptions: make([]*subscription, 0),
		events:        make(chan string, eventBufferSize),
		done:          make(chan struct{}),
	}
}

// Start launches the worker goroutine that delivers events to subscribers.
func (n *ReloadNotifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		klog.V(2).Info("Reload notifier already started.")
		return
	}
	n.started = true
	go n.deliverLoop()
}

// Stop shuts down the worker. Pending events are dropped.
func (n *ReloadNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return
	}
	n.started = false
	close(n.done)
}

// Subscribe registers a callback under the given id. The callback runs on the
// worker goroutine, never on the publisher's.
func (n *ReloadNotifier) Subscribe(id string, callback func(tag string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscriptions = append(n.subscriptions, &subscription{id: id, callback: callback})
	klog.V(3).Infof("Subscribed %s to reload events. %d subscriptions total.", id, len(n.subscriptions))
}

func (n *ReloadNotifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subscriptions {
		if sub.id == id {
			n.subscriptions = append(n.subscriptions[:i], n.subscriptions[i+1:]...)
			break
		}
	}
	klog.V(3).Infof("Unsubscribed %s, %d subscriptions remaining.", id, len(n.subscriptions))
}

// Publish queues a reload event. Calling before Start, or with no
// subscribers, is a silent no-op. If the event buffer is full the event is
// dropped; reload signals are an optimization, not a correctness requirement.
func (n *ReloadNotifier) Publish(tag string) {
	n.mu.RLock()
	started := n.started
	n.mu.RUnlock()
	if !started {
		return
	}

	select {
	case n.events <- tag:
	default:
		klog.V(2).Infof("Reload event buffer full, dropping event %s", tag)
	}
}

func (n *ReloadNotifier) deliverLoop() {
	for {
		select {
		case <-n.done:
			return
		case tag := <-n.events:
			n.mu.RLock()
			subs := make([]*subscription, len(n.subscriptions))
			copy(subs, n.subscriptions)
			n.mu.RUnlock()

			for _, sub := range subs {
				n.deliver(sub, tag)
			}
		}
	}
}

// One subscriber panicking must not prevent the others from being notified.
func (n *ReloadNotifier) deliver(sub *subscription, tag string) {
	defer func() {
		if r := recover(); r != nil {
			klog.Warningf("Recovered from panic in reload subscriber %s: %v", sub.id, r)
		}
	}()
	sub.callback(tag)
}
