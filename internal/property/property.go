// Package property provides a small typed property object: named values with
// defaults, suggested values, validation and write notifications.
package property

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

var (
	ErrNotFound      = errors.New("property not found")
	ErrInvalidValue  = errors.New("invalid property value")
	ErrAlreadyExists = errors.New("property already exists")
)

// Info declares a property.
//
// The type of Default fixes the type of the property; writes of any other
// type are rejected.
type Info struct {
	Name            string
	Default         any
	SuggestedValues []any

	// Optional. Called before a value is stored.
	Validate func(value any) error
}

func IntProperty(name string, defaultValue int, suggested []int, validate func(int) error) Info {
	info := Info{Name: name, Default: defaultValue}
	for _, v := range suggested {
		info.SuggestedValues = append(info.SuggestedValues, v)
	}
	if validate != nil {
		info.Validate = func(value any) error { return validate(value.(int)) }
	}
	return info
}

func StringProperty(name string, defaultValue string) Info {
	return Info{Name: name, Default: defaultValue}
}

// WriteHandler is notified after a value was written.
type WriteHandler func(name string, value any)

type property struct {
	info     Info
	value    any
	handlers []WriteHandler
}

// Object holds a set of properties. It is safe for concurrent use.
type Object struct {
	logger *slog.Logger

	mu         sync.Mutex
	properties map[string]*property
	order      []string
}

func NewObject(logger *slog.Logger) *Object {
	if logger == nil {
		logger = slog.Default()
	}
	return &Object{
		logger:     logger,
		properties: make(map[string]*property),
	}
}

func (o *Object) AddProperty(info Info) error {
	if info.Name == "" || info.Default == nil {
		return fmt.Errorf("%w: property needs a name and a default", ErrInvalidValue)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.properties[info.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, info.Name)
	}
	o.properties[info.Name] = &property{info: info, value: info.Default}
	o.order = append(o.order, info.Name)
	return nil
}

// SetPropertyValue validates and stores value, then runs the write handlers
// of the property on the calling goroutine.
func (o *Object) SetPropertyValue(name string, value any) error {
	o.mu.Lock()
	p, ok := o.properties[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if reflect.TypeOf(value) != reflect.TypeOf(p.info.Default) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s expects %T, got %T", ErrInvalidValue, name, p.info.Default, value)
	}
	if p.info.Validate != nil {
		if err := p.info.Validate(value); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
		}
	}
	p.value = value
	handlers := slices.Clone(p.handlers)
	o.mu.Unlock()

	o.logger.Debug("property written", "property", name, "value", value)
	for _, handler := range handlers {
		handler(name, value)
	}
	return nil
}

func (o *Object) PropertyValue(name string) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p.value, nil
}

func (o *Object) Int(name string) (int, error) {
	value, err := o.PropertyValue(name)
	if err != nil {
		return 0, err
	}
	v, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidValue, name, value)
	}
	return v, nil
}

func (o *Object) String(name string) (string, error) {
	value, err := o.PropertyValue(name)
	if err != nil {
		return "", err
	}
	v, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrInvalidValue, name, value)
	}
	return v, nil
}

// Property returns the declaration of a property.
func (o *Object) Property(name string) (Info, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.properties[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p.info, nil
}

// PropertyNames returns the property names in declaration order.
func (o *Object) PropertyNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.order)
}

func (o *Object) OnPropertyValueWrite(name string, handler WriteHandler) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.properties[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p.handlers = append(p.handlers, handler)
	return nil
}
