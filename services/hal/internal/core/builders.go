package core

import (
	"sort"
	"sync"

	"imucode-go/errcode"
)

// Device packages register their builder from init; HAL looks builders up
// by the HALDevice.Type string.
var builders = struct {
	sync.RWMutex
	m map[string]Builder
}{m: map[string]Builder{}}

func RegisterBuilder(typ string, b Builder) {
	builders.Lock()
	defer builders.Unlock()
	if _, dup := builders.m[typ]; dup {
		panic("duplicate device builder: " + typ)
	}
	builders.m[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	builders.RLock()
	defer builders.RUnlock()
	b, ok := builders.m[typ]
	return b, ok
}

// BuilderTypes lists registered device types in order.
func BuilderTypes() []string {
	builders.RLock()
	out := make([]string, 0, len(builders.m))
	for typ := range builders.m {
		out = append(out, typ)
	}
	builders.RUnlock()
	sort.Strings(out)
	return out
}

// As asserts a control payload to T. nil decodes as the zero T; anything
// else of the wrong type (pointers included) is invalid_payload.
func As[T any](v any) (T, errcode.Code) {
	if v == nil {
		var zero T
		return zero, ""
	}
	t, ok := v.(T)
	if !ok {
		return t, errcode.InvalidPayload
	}
	return t, ""
}
