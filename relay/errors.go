package relay

// ErrConnectionTimeout is returned when the connection is not established
// within Options.ConnectTimeout.
var ErrConnectionTimeout error = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string {
	return "connection timeout"
}

func (*timeoutError) Timeout() bool {
	return true
}

func (*timeoutError) Temporary() bool {
	return false
}

// AddressError reports a malformed HOST:PORT destination.
type AddressError struct {
	Address string
	Reason  string
}

func (e *AddressError) Error() string {
	return "invalid address " + e.Address + ": " + e.Reason
}
