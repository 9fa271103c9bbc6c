package chunk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// ErrPoolClosed resolves handles whose build was abandoned by Pool.Close.
var ErrPoolClosed = errors.New("chunk pool closed")

// Loader turns a chunk coordinate into a handle that resolves to the built
// chunk, either immediately or later.
type Loader interface {
	Load(coord spatial.Coord) *Handle
}

// Handle is a future for one chunk build.
type Handle struct {
	coord spatial.Coord
	done  chan struct{}
	chunk *Chunk
	err   error
}

func newHandle(coord spatial.Coord) *Handle {
	return &Handle{coord: coord, done: make(chan struct{})}
}

// Resolved returns a handle that is already complete.
func Resolved(c *Chunk) *Handle {
	h := newHandle(c.Coord)
	h.resolve(c, nil)
	return h
}

// NewPromise returns an unresolved handle and the function that completes it.
// The function must be called exactly once.
func NewPromise(coord spatial.Coord) (*Handle, func(*Chunk, error)) {
	h := newHandle(coord)
	return h, h.resolve
}

func (h *Handle) resolve(c *Chunk, err error) {
	h.chunk = c
	h.err = err
	close(h.done)
}

func (h *Handle) Coord() spatial.Coord {
	return h.coord
}

// Ready reports whether the build finished, successfully or not.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the build finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Chunk, error) {
	select {
	case <-h.done:
		return h.chunk, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Chunk returns the built chunk, or nil while the build is in flight or if it
// failed.
func (h *Handle) Chunk() *Chunk {
	if !h.Ready() {
		return nil
	}
	return h.chunk
}

// Err returns the build error once the handle is ready.
func (h *Handle) Err() error {
	if !h.Ready() {
		return nil
	}
	return h.err
}

// SyncLoader builds on the calling goroutine.
type SyncLoader struct {
	builder *Builder
}

func NewSyncLoader(builder *Builder) *SyncLoader {
	return &SyncLoader{builder: builder}
}

func (l *SyncLoader) Load(coord spatial.Coord) *Handle {
	return Resolved(l.builder.Build(coord))
}

// Pool builds chunks on a fixed set of worker goroutines.
type Pool struct {
	builder *Builder
	jobs    chan *Handle
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool

	inFlight atomic.Int64
	built    atomic.Int64
}

// NewPool starts workers goroutines that build chunks until ctx is cancelled
// or Close is called.
func NewPool(ctx context.Context, builder *Builder, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		builder: builder,
		jobs:    make(chan *Handle, workers*8),
		group:   group,
		ctx:     gctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			return p.work(gctx)
		})
	}

	logging.WithComponent("chunk_pool").Debug("Chunk pool started", "workers", workers)
	return p
}

func (p *Pool) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case h := <-p.jobs:
			if err := p.build(h); err != nil {
				logging.WithChunkCoords(h.coord.X, h.coord.Z).Error("Chunk build failed", "error", err)
			}
		}
	}
}

func (p *Pool) build(h *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building chunk %v: %v", h.coord, r)
			h.resolve(nil, err)
		}
		p.inFlight.Add(-1)
	}()
	c := p.builder.Build(h.coord)
	p.built.Add(1)
	h.resolve(c, nil)
	return nil
}

// Load queues a build. It blocks while the queue is full.
func (p *Pool) Load(coord spatial.Coord) *Handle {
	h := newHandle(coord)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		h.resolve(nil, ErrPoolClosed)
		return h
	}

	p.inFlight.Add(1)
	select {
	case p.jobs <- h:
	case <-p.ctx.Done():
		p.inFlight.Add(-1)
		h.resolve(nil, ErrPoolClosed)
	}
	return h
}

// InFlight returns the number of queued or running builds.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

// Built returns the number of chunks the pool has finished.
func (p *Pool) Built() int64 {
	return p.built.Load()
}

// Close stops the workers and resolves every queued handle with
// ErrPoolClosed.
func (p *Pool) Close() error {
	p.cancel()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	err := p.group.Wait()
	for {
		select {
		case h := <-p.jobs:
			p.inFlight.Add(-1)
			h.resolve(nil, ErrPoolClosed)
		default:
			return err
		}
	}
}
