package platform

// Transport carries requests from a client to its window server. Send must
// not block on the server's answer; the outcome of a request arrives later as
// an Event carrying the same change id.
type Transport interface {
	Send(req Request) error
}

// EventSink receives events decoded by a transport, in arrival order.
type EventSink func(Event)

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(req Request) error

func (f TransportFunc) Send(req Request) error {
	return f(req)
}
