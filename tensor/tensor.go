// Package tensor provides the host/device buffer handle carried by request
// attachments (embedding bias, word lists, prompt-tuning tables, adapter
// weights, captured logits).
//
// A Tensor is a flat byte buffer plus shape, element type and a residency tag.
// Nothing here talks to real accelerator memory: residency records where the
// surrounding runtime placed the buffer, and BufferManager performs the
// host-to-device migration on a caller-supplied execution stream.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType identifies the element type of a Tensor.
type DType int

const (
	Float32 DType = iota
	Float16
	Int32
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float16:
		return 2
	default:
		panic(fmt.Sprintf("unknown dtype %d", int(d)))
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Residency records which memory tier currently holds a Tensor's bytes.
type Residency int

const (
	Host Residency = iota
	Device
)

func (r Residency) String() string {
	if r == Device {
		return "device"
	}
	return "host"
}

// Tensor is an immutable-shape buffer handle. The byte contents are owned by
// the Tensor; callers that need a stable snapshot copy before replacing it.
type Tensor struct {
	shape     []int
	dtype     DType
	residency Residency
	data      []byte
}

// New allocates a zeroed host-resident Tensor with the given dtype and shape.
// All dimensions must be positive.
func New(dtype DType, shape ...int) (*Tensor, error) {
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, errors.Errorf("tensor: invalid dimension %d in shape %v", dim, shape)
		}
		n *= dim
	}
	return &Tensor{
		shape:     append([]int{}, shape...),
		dtype:     dtype,
		residency: Host,
		data:      make([]byte, n*dtype.Size()),
	}, nil
}

// FromFloat32 builds a host-resident Tensor from float32 values. For dtype
// Float16 the values are narrowed on the way in.
func FromFloat32(values []float32, dtype DType, shape ...int) (*Tensor, error) {
	if dtype == Int32 {
		return nil, errors.New("tensor: FromFloat32 requires a float dtype")
	}
	t, err := New(dtype, shape...)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, errors.Errorf("tensor: %d values do not fill shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	for i, v := range values {
		t.setFloat(i, v)
	}
	return t, nil
}

// FromInt32 builds a host-resident Int32 Tensor, used for token-id payloads
// such as bad/stop word lists and draft token candidates.
func FromInt32(values []int32, shape ...int) (*Tensor, error) {
	t, err := New(Int32, shape...)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, errors.Errorf("tensor: %d values do not fill shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	for i, v := range values {
		putUint32(t.data[i*4:], uint32(v))
	}
	return t, nil
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor) Shape() []int {
	return append([]int{}, t.shape...)
}

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Residency reports where the buffer currently lives.
func (t *Tensor) Residency() Residency { return t.residency }

// NumElements returns the product of the tensor's dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, dim := range t.shape {
		n *= dim
	}
	return n
}

// SizeBytes returns the byte length of the underlying buffer.
func (t *Tensor) SizeBytes() int { return len(t.data) }

// Float32s decodes the buffer to float32 values. Panics for Int32 tensors.
func (t *Tensor) Float32s() []float32 {
	if t.dtype == Int32 {
		panic("tensor: Float32s called on an int32 tensor")
	}
	out := make([]float32, t.NumElements())
	for i := range out {
		out[i] = t.getFloat(i)
	}
	return out
}

// Int32s decodes the buffer to int32 values. Panics for float tensors.
func (t *Tensor) Int32s() []int32 {
	if t.dtype != Int32 {
		panic(fmt.Sprintf("tensor: Int32s called on a %s tensor", t.dtype))
	}
	out := make([]int32, t.NumElements())
	for i := range out {
		out[i] = int32(getUint32(t.data[i*4:]))
	}
	return out
}

func (t *Tensor) setFloat(i int, v float32) {
	switch t.dtype {
	case Float32:
		putUint32(t.data[i*4:], f32bits(v))
	case Float16:
		h := float16.Fromfloat32(v)
		t.data[i*2] = byte(h.Bits())
		t.data[i*2+1] = byte(h.Bits() >> 8)
	}
}

func (t *Tensor) getFloat(i int) float32 {
	switch t.dtype {
	case Float32:
		return f32frombits(getUint32(t.data[i*4:]))
	case Float16:
		bits := uint16(t.data[i*2]) | uint16(t.data[i*2+1])<<8
		return float16.Frombits(bits).Float32()
	}
	panic(fmt.Sprintf("tensor: getFloat on %s tensor", t.dtype))
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, shape=%v, %s)", t.dtype, t.shape, t.residency)
}
