package ws

// Observer receives counters from the registry and the emitter.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	EventEmitted(kind string, seconds float64)
	Delivered(scope string)
	SendFailed(reason string)
	EventDropped()
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()            {}
func (nopObserver) ConnectionClosed()            {}
func (nopObserver) EventEmitted(string, float64) {}
func (nopObserver) Delivered(string)             {}
func (nopObserver) SendFailed(string)            {}
func (nopObserver) EventDropped()                {}
