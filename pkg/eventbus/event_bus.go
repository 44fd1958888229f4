package eventbus

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// EventBus dispatches published events to every subscriber whose handler
// signature matches the published arguments.
type EventBus interface {
	Publish(args ...any)
	Subscribe(handler any)
	Unsubscribe(handler any)
	Clear()
	SubscribersCount() int
}

type subscriber struct {
	handler any
}

type publisherImpl struct {
	log         *logrus.Logger
	subscribers []subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisherImpl{log: log}
}

// MatchSignature reports whether handler is a func accepting exactly the
// published argument types.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisherImpl) Publish(args ...any) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	handled := false
	for _, s := range p.subscribers {
		if !MatchSignature(s.handler, args) {
			continue
		}
		v := reflect.ValueOf(s.handler)
		func() {
			defer func() {
				if r := recover(); r != nil {
					if p.log != nil {
						p.log.Errorf("eventbus: handler %s panicked: %v", v.Type().String(), r)
					}
				}
			}()
			v.Call(in)
			handled = true
		}()
	}

	if !handled && p.log != nil {
		p.log.Debugf("eventbus: no matching subscribers for %T event", first(args))
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func (p *publisherImpl) Subscribe(handler any) {
	if reflect.TypeOf(handler).Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	p.subscribers = append(p.subscribers, subscriber{handler: handler})
}

func (p *publisherImpl) Unsubscribe(handler any) {
	ptr := reflect.ValueOf(handler).Pointer()
	for i, s := range p.subscribers {
		if reflect.ValueOf(s.handler).Pointer() == ptr {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.subscribers = nil
}

func (p *publisherImpl) SubscribersCount() int {
	return len(p.subscribers)
}
