package compose

import (
	"sort"
)

// State is the record a factory returns. Cells, Computeds and Accessors
// are bound to host properties of the same name; everything else, Emitters
// included, is copied to the host as is.
type State map[string]any

// binding keeps one host property and one check subject in sync.
type binding struct {
	props     Props
	key       string
	subject   checkSubject
	scheduler *Scheduler
	errors    ErrorHandler
}

// next pushes a subject value to the host. A value the host cannot take
// is reported, not raised.
func (b *binding) next(v any) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(asError(r))
		}
	}()
	b.props.Set(b.key, v)
	if b.scheduler != nil {
		b.scheduler.MarkDirty()
	}
}

func (b *binding) fail(err error) {
	b.errors.HandleError(err)
}

// Check writes a host-side change back into the subject.
func (b *binding) Check() {
	v := b.props.Get(b.key)
	previous := b.subject.currentAny()
	if !b.subject.differsAny(v) {
		return
	}
	if b.scheduler != nil {
		b.scheduler.MarkDirty()
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.fail(asError(r))
			}
		}()
		b.subject.assignAny(v)
	}()
	b.subject.notifyChange(previous, v)
}

// bindState materializes state on props. Entries are bound in key order.
func bindState(scope *Scope, props Props, state State) {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := state[key]
		subject, ok := value.(checkSubject)
		if !ok {
			props.Set(key, value)
			continue
		}
		b := &binding{
			props:     props,
			key:       key,
			subject:   subject,
			scheduler: scope.Scheduler(),
			errors:    scope.ErrorHandler(),
		}
		scope.addCheck(subject.checkPhase(), b)
		// The subscription replays the current value into props.
		scope.Add(subject.subscribeAny(b.next, b.fail))
	}
}
