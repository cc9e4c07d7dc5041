package store

import "fmt"

// DataError reports bytes in the file that could not be interpreted.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const headLen = 48
	const tailLen = 16
	msg := e.Msg
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	n := len(e.Data)
	switch {
	case n == 0:
		return msg
	case n <= headLen+tailLen:
		return fmt.Sprintf("%s: at %d of (%d) %x", msg, e.Off, n, e.Data)
	default:
		return fmt.Sprintf("%s: at %d of (%d) %x...%x", msg, e.Off, n, e.Data[:headLen], e.Data[n-tailLen:])
	}
}
