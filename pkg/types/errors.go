package types

type TimeoutError struct{}

func (e *TimeoutError) Error() string {
	return "timeout"
}

// BusyError is reported when the radio refuses to transmit.
type BusyError struct{}

func (e *BusyError) Error() string {
	return "radio busy"
}
