package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 150 // ~5 minutes at the default interval
)

// attempt is the shared outcome of a single provisioning run. Waiters block
// on done and then read err.
type attempt struct {
	done chan struct{}
	err  error
}

// Provisioner makes a named collection exist and become queryable, with
// at-most-one provisioning operation per collection name at any time.
// Concurrent callers for the same name all observe the outcome of the one
// in-flight attempt. Successful attempts stay cached for the process
// lifetime; failed attempts are evicted so a later call retries from
// scratch.
type Provisioner struct {
	store  VectorStore
	dim    int
	logger *slog.Logger

	pollInterval time.Duration
	maxPolls     int

	mu       sync.Mutex
	attempts map[string]*attempt
}

func NewProvisioner(store VectorStore, dim int, logger *slog.Logger) *Provisioner {
	p := &Provisioner{
		store:        store,
		dim:          dim,
		logger:       logger,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		attempts:     map[string]*attempt{},
	}
	return p
}

// EnsureReady returns once the collection exists and reports ready, or with
// a ProvisionError. The provisioning run itself is detached from the
// initiating caller's context: the attempt is shared state and must not die
// with whichever request happened to start it. Waiters still honor their
// own context.
func (p *Provisioner) EnsureReady(ctx context.Context, name string) error {
	p.mu.Lock()
	if a, ok := p.attempts[name]; ok {
		p.mu.Unlock()
		return p.wait(ctx, a)
	}
	a := &attempt{done: make(chan struct{})}
	p.attempts[name] = a
	p.mu.Unlock()

	go p.run(name, a)
	return p.wait(ctx, a)
}

// Forget drops any cached provisioning state for name. Used when the
// collection is deleted out from under the cache.
func (p *Provisioner) Forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.attempts[name]; ok {
		select {
		case <-a.done:
			delete(p.attempts, name)
		default:
			// In-flight attempts keep their entry; the run itself
			// evicts on failure.
		}
	}
}

func (p *Provisioner) wait(ctx context.Context, a *attempt) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provisioner) run(name string, a *attempt) {
	err := p.provision(context.Background(), name)
	if err != nil {
		err = &core.ProvisionError{Collection: name, Err: err}
		p.logger.Error("provisioning failed", "collection", name, "error", err)
	}

	// Record the outcome and, on failure, evict the entry in the same
	// critical section so a new caller never latches onto a just-failed
	// attempt.
	p.mu.Lock()
	a.err = err
	if err != nil {
		delete(p.attempts, name)
	}
	close(a.done)
	p.mu.Unlock()
}

func (p *Provisioner) provision(ctx context.Context, name string) error {
	cols, err := p.store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	exists := false
	for _, c := range cols {
		if c.Name == name {
			exists = true
			break
		}
	}
	if !exists {
		p.logger.Info("creating collection", "collection", name, "dim", p.dim)
		if err := p.store.CreateCollection(ctx, name, p.dim); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	for i := 0; i < p.maxPolls; i++ {
		ready, err := p.store.DescribeReady(ctx, name)
		if err != nil {
			// Newly created collections may not be visible yet;
			// keep polling until the attempt budget runs out.
			p.logger.Debug("describe failed, retrying", "collection", name, "error", err)
		} else if ready {
			p.logger.Info("collection ready", "collection", name)
			return nil
		}
		time.Sleep(p.pollInterval)
	}
	return fmt.Errorf("timeout: not ready after %d attempts", p.maxPolls)
}
