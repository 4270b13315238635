package landing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/macworld/concierge/internal/conversation"
)

type entry struct {
	dialogue *conversation.Dialogue
	lastUsed time.Time

	once   sync.Once
	loaded chan struct{}
}

func (e *entry) load(ctx context.Context) {
	e.once.Do(func() {
		defer close(e.loaded)
		e.dialogue.Load(ctx)
	})
}

func (e *entry) ready() bool {
	select {
	case <-e.loaded:
		return true
	default:
		return false
	}
}

// Registry hands out one Dialogue per session key, loading it from the
// snapshot store the first time the key is seen.
type Registry struct {
	opts conversation.DialogueOptions

	mu        sync.Mutex
	dialogues map[string]*entry
	now       func() time.Time
}

// NewRegistry creates a registry whose dialogues share opts.
func NewRegistry(opts conversation.DialogueOptions) *Registry {
	return &Registry{
		opts:      opts,
		dialogues: make(map[string]*entry),
		now:       time.Now,
	}
}

// Create starts a dialogue under a fresh random key.
func (r *Registry) Create(ctx context.Context) *conversation.Dialogue {
	return r.Get(ctx, uuid.NewString())
}

// Get returns the dialogue for key, resuming it from the store when it is
// not yet in memory. The store is read outside the registry lock; callers
// racing on a new key wait for the one load.
func (r *Registry) Get(ctx context.Context, key string) *conversation.Dialogue {
	r.mu.Lock()
	e, ok := r.dialogues[key]
	if !ok {
		e = &entry{
			dialogue: conversation.NewDialogue(key, r.opts),
			loaded:   make(chan struct{}),
		}
		r.dialogues[key] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	e.load(ctx)
	return e.dialogue
}

// Len reports how many dialogues are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dialogues)
}

// Sweep drops dialogues idle for longer than maxIdle. Their state lives on
// in the snapshot store. Dialogues still loading or with a reply in
// flight are kept.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for k, e := range r.dialogues {
		if e.lastUsed.Before(cutoff) && e.ready() && !e.dialogue.View().Busy {
			delete(r.dialogues, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(maxIdle); n > 0 && r.opts.Logger != nil {
				r.opts.Logger.Debug("swept idle dialogues", "count", n)
			}
		}
	}
}
