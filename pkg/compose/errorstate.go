package compose

// ErrorState describes the latest failure of a Computed.
type ErrorState struct {
	Err     error
	Message string
	// Retries counts the failures seen before this one.
	Retries int
}

// OnError returns a Cell holding the failure state of c. It holds nil
// while c evaluates successfully. handler, if not nil, runs on each
// failure. The hook is removed when the active Scope is released.
func OnError[T any](c *Computed[T], handler func(ErrorState)) *Cell[*ErrorState] {
	state := NewCell[*ErrorState](nil)
	retries := 0
	remove := c.addErrorHook(func(err error) {
		if err == nil {
			state.Set(nil)
			return
		}
		es := ErrorState{Err: err, Message: err.Error(), Retries: retries}
		retries++
		state.Set(&es)
		if handler != nil {
			handler(es)
		}
	})
	_ = AddTeardown(remove)
	return state
}
