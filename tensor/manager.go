package tensor

// Stream is an opaque execution-stream handle supplied by the surrounding
// runtime. Copies issued through a BufferManager are ordered with respect to
// other work submitted on the same stream, so a migration completes before any
// later device-side consumer of the buffer runs.
type Stream int64

// BufferManager performs residency migrations on behalf of the runtime. It is
// bound to one execution stream for its lifetime and is the only way to move a
// Tensor off the host; Tensors never migrate themselves.
type BufferManager struct {
	stream Stream
}

// NewBufferManager binds a manager to an execution stream.
func NewBufferManager(stream Stream) *BufferManager {
	return &BufferManager{stream: stream}
}

// Stream returns the execution stream this manager submits copies on.
func (m *BufferManager) Stream() Stream { return m.stream }

// CopyToDevice returns a device-resident Tensor with the same dtype, shape and
// contents. If t is already device-resident it is returned unchanged, making
// repeated migration of the same attachment a no-op.
func (m *BufferManager) CopyToDevice(t *Tensor) *Tensor {
	if t == nil || t.residency == Device {
		return t
	}
	return &Tensor{
		shape:     append([]int{}, t.shape...),
		dtype:     t.dtype,
		residency: Device,
		data:      append([]byte{}, t.data...),
	}
}
