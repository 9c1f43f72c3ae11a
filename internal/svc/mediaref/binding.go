package mediaref

import (
	"context"
	"sync"

	"github.com/mkrupp/gymtracker/internal/domain"
	context_ "github.com/mkrupp/gymtracker/internal/infra/context"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

// Binding tracks what one UI element displays.
//
//	Empty -> Loading -> Ready | Placeholder
//	any   -> Empty     on input change or Close
//
// A reference minted on entering Ready is revoked exactly once when the
// binding leaves Ready. Fetch results that arrive after the input changed or
// the binding was closed are dropped without minting.
type Binding struct {
	id       string
	mgr      *Manager
	onChange func(View)
	log      logging.Logger

	mu      sync.Mutex
	input   Input
	view    View
	gen     uint64
	cancel  context.CancelFunc
	release func()
	closed  bool
	loads   sync.WaitGroup
}

// ID identifies the binding in logs.
func (b *Binding) ID() string {
	return b.id
}

// View returns the current state.
func (b *Binding) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.view
}

// Set changes the displayed input. Setting the current input again is a
// no-op, as is any call after Close.
func (b *Binding) Set(ctx context.Context, in Input) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || in == b.input {
		return
	}

	b.exit()
	b.input = in

	switch {
	case in.Legacy != "":
		b.transition(View{
			State:  StateReady,
			Handle: domain.DisplayHandle{Reference: in.Legacy, Kind: domain.MediaKindImage},
		})
	case in.MediaID != "":
		b.transition(View{State: StateLoading})

		loadCtx, cancel := context.WithCancel(context_.WithBindingID(ctx, b.id))
		b.cancel = cancel

		b.loads.Add(1)
		b.mgr.loads.Add(1)

		go b.load(loadCtx, cancel, b.gen, in.MediaID)
	}
}

// Close unmounts the binding: the current reference is revoked and pending
// fetches are invalidated. Close is idempotent.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.exit()
	b.closed = true
	b.input = Input{}

	b.log.Debug("binding closed")
}

// Wait blocks until the binding has no fetch in flight.
func (b *Binding) Wait() {
	b.loads.Wait()
}

// exit leaves the current state. Callers hold b.mu.
func (b *Binding) exit() {
	b.gen++

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	b.release()
	b.release = func() {}

	if b.view.State != StateEmpty {
		b.transition(View{State: StateEmpty})
	}
}

// transition publishes a new view. Callers hold b.mu.
func (b *Binding) transition(view View) {
	b.log.Debug("binding transition",
		"from", b.view.State.String(),
		"to", view.State.String(),
		"ref", view.Handle.Reference,
	)

	b.view = view
	b.onChange(view)
}

func (b *Binding) load(ctx context.Context, cancel context.CancelFunc, gen uint64, mediaID domain.MediaID) {
	defer b.mgr.loads.Done()
	defer b.loads.Done()
	defer cancel()

	media, found, err := b.mgr.store.Get(ctx, mediaID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || gen != b.gen {
		b.log.DebugContext(ctx, "stale fetch dropped", "media.id", mediaID)

		return
	}

	b.cancel = nil

	if err != nil || !found {
		if err != nil {
			b.log.WarnContext(ctx, "media fetch failed", "media.id", mediaID, "error", err)
		}

		b.transition(View{State: StatePlaceholder})

		return
	}

	ref := b.mgr.refs.Mint(media.Bytes(), media.MIMEType())
	b.release = sync.OnceFunc(func() { b.mgr.refs.Revoke(ref) })

	b.transition(View{
		State:  StateReady,
		Handle: domain.DisplayHandle{Reference: ref, Kind: media.Kind()},
	})
}
