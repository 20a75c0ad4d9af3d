package compose

import "github.com/vango-dev/compose/pkg/stream"

type cancelKind int

const (
	// cancelOwned ties disposal to the owning scope.
	cancelOwned cancelKind = iota
	// cancelDetached never disposes automatically.
	cancelDetached
	// cancelAbort disposes when an AbortSignal fires.
	cancelAbort
	// cancelGroup disposes with a Subscription group.
	cancelGroup
)

// cancellation decides once, at registration, what disposes an effect.
type cancellation struct {
	kind  cancelKind
	abort *stream.AbortSignal
	group *stream.Subscription
}

func (c cancellation) applyEffect(cfg *effectConfig) { cfg.cancel = c }

// Owned disposes the effect with the scope it was created in. It is the
// default.
func Owned() EffectOption {
	return cancellation{kind: cancelOwned}
}

// Detached keeps the effect alive until it is unsubscribed explicitly,
// even after the scope it was created in is disposed.
func Detached() EffectOption {
	return cancellation{kind: cancelDetached}
}

// AbortWith disposes the effect when sig fires. The owning scope no
// longer disposes it.
func AbortWith(sig *stream.AbortSignal) EffectOption {
	if sig == nil {
		return Detached()
	}
	return cancellation{kind: cancelAbort, abort: sig}
}

// GroupWith disposes the effect when group is unsubscribed. Use NewGroup
// to get a group owned by the current scope.
func GroupWith(group *stream.Subscription) EffectOption {
	if group == nil {
		return Detached()
	}
	return cancellation{kind: cancelGroup, group: group}
}

// addSignal wraps t in a Subscription and attaches it to whatever the
// cancellation names. The wrapper is returned so the caller can release
// it early, which also detaches it from the signal.
func addSignal(t stream.Unsubscribable, c cancellation, owner *Scope) *stream.Subscription {
	sub := stream.NewSubscription()
	sub.Add(t)

	switch c.kind {
	case cancelAbort:
		remove := c.abort.OnAbort(sub.Unsubscribe)
		sub.AddFunc(remove)
	case cancelGroup:
		c.group.Add(sub)
	case cancelDetached:
	default:
		if owner != nil {
			owner.Add(sub)
		}
	}
	return sub
}

// NewGroup returns an empty Subscription owned by the active Scope. Pass
// it to GroupWith to dispose several effects together, independently of
// the scope.
func NewGroup() (*stream.Subscription, error) {
	s := currentScope()
	if s == nil {
		return nil, callContextError("NewGroup")
	}
	group := stream.NewSubscription()
	s.Add(group)
	return group, nil
}
