package broadcast

import (
	"sync"

	"textlens-backend/internal/shared/telemetry"
)

// Subscriber receives every event emitted for one job while attached.
type Subscriber func(Event)

// Subscription identifies one attached subscriber so it can be detached.
type Subscription struct {
	jobID string
	fn    Subscriber
}

type channel struct {
	subscribers map[*Subscription]struct{}
	active      bool
	// running is set for the duration of an orchestrator run. A channel with
	// no run and no subscribers has no reason to exist and is removed on the
	// next detach.
	running bool
}

// Registry fans out per-job stream events to zero or more live subscribers.
// Channels are keyed by job id; independent jobs never contend with each other
// beyond the registry map lock. There is no replay: a late subscriber only
// sees events emitted after it attached.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channel
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*channel)}
}

// Subscribe attaches a callback to the job's channel, creating the channel and
// marking it active if absent. The returned Subscription is the detach handle.
func (r *Registry) Subscribe(jobID string, fn Subscriber) *Subscription {
	sub := &Subscription{jobID: jobID, fn: fn}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.ensureLocked(jobID)
	ch.subscribers[sub] = struct{}{}
	return sub
}

// Activate marks the job's channel active, creating it if absent. Called by
// the orchestrator when a run begins so stop requests have a flag to flip
// even before any subscriber attaches.
func (r *Registry) Activate(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.ensureLocked(jobID)
	ch.running = true
}

// IsActive reports whether the job's channel exists and is active. The
// orchestrator checks this at every yield point to observe stop requests.
func (r *Registry) IsActive(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[jobID]
	return ok && ch.active
}

// Emit delivers event to every subscriber of an active channel. Emitting to an
// absent or inactive channel is a silent no-op. A panicking subscriber never
// blocks delivery to the others or reaches the emitter.
func (r *Registry) Emit(jobID string, event Event) {
	r.mu.RLock()
	ch, ok := r.channels[jobID]
	if !ok || !ch.active {
		r.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, 0, len(ch.subscribers))
	for sub := range ch.subscribers {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		deliver(jobID, sub, event)
	}
}

// UnsubscribeAll clears the job's subscribers, marks the channel inactive, and
// removes it. Used when the transport disconnects; emits nothing itself.
func (r *Registry) UnsubscribeAll(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[jobID]
	if !ok {
		return
	}
	ch.active = false
	ch.subscribers = make(map[*Subscription]struct{})
	delete(r.channels, jobID)
}

// Unsubscribe detaches a single subscriber. When the last subscriber leaves a
// channel whose run has already ended, the channel is removed; during a run it
// stays so the orchestrator keeps its stop flag.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[sub.jobID]
	if !ok {
		return
	}
	delete(ch.subscribers, sub)
	if len(ch.subscribers) == 0 && !ch.running {
		delete(r.channels, sub.jobID)
	}
}

// Release marks the run as ended and removes the job's channel if no
// subscriber is attached. Called when an orchestrator run returns; channels
// with live subscribers are reclaimed by Unsubscribe when the transport
// disconnects.
func (r *Registry) Release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[jobID]
	if !ok {
		return
	}
	ch.running = false
	if len(ch.subscribers) == 0 {
		delete(r.channels, jobID)
	}
}

// Stop marks the channel inactive, emits a stopped event to the current
// subscribers, then clears and removes the channel. The in-flight orchestrator
// run observes the flag at its next checkpoint and returns early.
func (r *Registry) Stop(jobID string, message string) {
	r.mu.Lock()
	ch, ok := r.channels[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	ch.active = false
	subs := make([]*Subscription, 0, len(ch.subscribers))
	for sub := range ch.subscribers {
		subs = append(subs, sub)
	}
	ch.subscribers = make(map[*Subscription]struct{})
	delete(r.channels, jobID)
	r.mu.Unlock()

	event := NewStopped(message)
	for _, sub := range subs {
		deliver(jobID, sub, event)
	}
}

func (r *Registry) ensureLocked(jobID string) *channel {
	ch, ok := r.channels[jobID]
	if !ok {
		ch = &channel{subscribers: make(map[*Subscription]struct{})}
		r.channels[jobID] = ch
	}
	ch.active = true
	return ch
}

func deliver(jobID string, sub *Subscription, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("broadcast.subscriber_panic", map[string]any{
				"job_id": jobID,
				"event":  event.EventType(),
				"panic":  rec,
			})
		}
	}()
	sub.fn(event)
}
