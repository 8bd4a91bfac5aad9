// Package codec provides the payload encoders used by messages exchanged
// between the host and its plugins.
//
// A codec is identified by name. Messages carry the name of the codec their
// payload was produced with, so a receiver can decode without knowing ahead
// of time how the sender encoded it. JSON, Protocol Buffers and MessagePack
// codecs are registered by default; plugins may register their own.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Codec converts between Go values and payload bytes.
type Codec interface {
	// Name is the registry key written into every message encoded with
	// this codec.
	Name() string
	Encode(v any) ([]byte, error)
	// Decode fills v, which must be a non-nil pointer, from data.
	Decode(data []byte, v any) error
}

var (
	// ErrUnknownCodec is returned when a codec name is not registered.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrDuplicateCodec is returned when registering a name twice.
	ErrDuplicateCodec = errors.New("codec already registered")
)

// DecodeError reports a payload that could not be decoded.
type DecodeError struct {
	Codec string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode failed: %v", e.Codec, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func init() {
	for _, c := range []Codec{JSON, Protobuf, Msgpack} {
		if err := Register(c); err != nil {
			panic(err)
		}
	}
}

// Register adds c to the process-wide codec registry.
func Register(c Codec) error {
	if c == nil || c.Name() == "" {
		return fmt.Errorf("cannot register codec without a name")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[c.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCodec, c.Name())
	}
	registry[c.Name()] = c
	return nil
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
