package compose

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Props is the host-instance property bag binding glue writes to and
// reads back from.
type Props interface {
	Get(key string) any
	Set(key string, value any)
}

// MapProps is a map-backed Props.
type MapProps map[string]any

// Get returns the value stored under key.
func (m MapProps) Get(key string) any { return m[key] }

// Set stores value under key.
func (m MapProps) Set(key string, value any) { m[key] = value }

// StructProps exposes the exported fields of the struct ptr points to.
// Keys match a `compose:"name"` tag first, then the field name, then the
// field name ignoring case. Unknown keys are kept in a side map.
//
// Setting a value that cannot be assigned or converted to the field's type
// panics; binding glue reports that to the host's error handler.
func StructProps(ptr any) (Props, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, errors.New("compose: StructProps needs a non-nil pointer to a struct")
	}
	elem := v.Elem()
	t := elem.Type()

	sp := &structProps{
		v:      elem,
		tagged: make(map[string]int),
		named:  make(map[string]int),
		extra:  make(map[string]any),
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("compose"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				sp.tagged[name] = i
			}
		}
		sp.named[f.Name] = i
	}
	return sp, nil
}

type structProps struct {
	mu     sync.Mutex
	v      reflect.Value
	tagged map[string]int
	named  map[string]int
	extra  map[string]any
}

func (p *structProps) field(key string) (reflect.Value, bool) {
	if i, ok := p.tagged[key]; ok {
		return p.v.Field(i), true
	}
	if i, ok := p.named[key]; ok {
		return p.v.Field(i), true
	}
	for name, i := range p.named {
		if strings.EqualFold(name, key) {
			return p.v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func (p *structProps) Get(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.field(key); ok {
		return f.Interface()
	}
	return p.extra[key]
}

func (p *structProps) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.field(key)
	if !ok {
		p.extra[key] = value
		return
	}
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(f.Type()):
		f.Set(rv)
	case rv.Type().ConvertibleTo(f.Type()):
		f.Set(rv.Convert(f.Type()))
	default:
		panic(fmt.Sprintf("compose: cannot set prop %q of type %s to %T", key, f.Type(), value))
	}
}
