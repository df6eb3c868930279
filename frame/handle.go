package frame

import (
	"sync"
	"sync/atomic"
	"time"
)

type Origin int

const (
	// OriginSnapshot is a locally allocated buffer read from a camera source.
	OriginSnapshot Origin = iota
	// OriginAnnotated is a frame supplied by the recognition service.
	OriginAnnotated
)

func (o Origin) String() string {
	if o == OriginAnnotated {
		return "annotated"
	}
	return "snapshot"
}

// buffer is shared by every handle created through Share. free runs once,
// when the last reference goes away.
type buffer struct {
	refs atomic.Int32
	data []byte
	free func([]byte)
	once sync.Once
}

func (b *buffer) unref() {
	if b.refs.Add(-1) > 0 {
		return
	}
	b.once.Do(func() {
		if b.free != nil {
			b.free(b.data)
		}
		b.data = nil
	})
}

// Handle is an owned, explicitly releasable reference to image bytes.
// Bytes are valid until Release; callers that need them longer must copy.
type Handle struct {
	buf         *buffer
	contentType string
	origin      Origin
	released    atomic.Bool
}

// NewHandle wraps data. free, if not nil, is called with data once every
// handle sharing the buffer has been released.
func NewHandle(data []byte, contentType string, origin Origin, free func([]byte)) *Handle {
	b := &buffer{data: data, free: free}
	b.refs.Store(1)
	return &Handle{
		buf:         b,
		contentType: contentType,
		origin:      origin,
	}
}

// Share returns a new handle over the same buffer. The receiver keeps its own
// reference. Sharing a released handle returns nil.
func (h *Handle) Share() *Handle {
	if h == nil || h.released.Load() {
		return nil
	}
	h.buf.refs.Add(1)
	return &Handle{
		buf:         h.buf,
		contentType: h.contentType,
		origin:      h.origin,
	}
}

func (h *Handle) Bytes() []byte {
	if h == nil || h.released.Load() {
		return nil
	}
	return h.buf.data
}

func (h *Handle) Len() int {
	return len(h.Bytes())
}

func (h *Handle) ContentType() string {
	return h.contentType
}

func (h *Handle) Origin() Origin {
	return h.origin
}

// Release drops this handle's reference. Calling it more than once, or on a
// nil handle, is a no-op.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.buf.unref()
}

func (h *Handle) Released() bool {
	return h == nil || h.released.Load()
}

// Snapshot is one image pulled from a camera source. Ownership moves to
// whoever fetched it; Release frees the underlying buffer reference.
type Snapshot struct {
	CameraID   string
	CapturedAt time.Time
	Frame      *Handle
}

func (s Snapshot) Release() {
	s.Frame.Release()
}
