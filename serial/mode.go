package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Read when the read timeout expires before the
	// requested number of bytes arrived.
	ErrTimeout = errors.New("serial: read timeout")
	// ErrClosed is returned when the port is used after Close or before Open.
	ErrClosed = errors.New("serial: port closed")
	// ErrUnsupportedBaud is returned by Configure for baud rates without a
	// termios constant.
	ErrUnsupportedBaud = errors.New("serial: unsupported baud rate")
)

// StopBits is the number of stop bits per character.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// Parity is the parity checking mode.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// Mode describes the line settings applied by Configure.
type Mode struct {
	BaudRate int
	DataBits int // 5 to 8
	StopBits StopBits
	Parity   Parity
}

func (m Mode) String() string {
	p := "N"
	switch m.Parity {
	case OddParity:
		p = "O"
	case EvenParity:
		p = "E"
	}
	stop := 1
	if m.StopBits == TwoStopBits {
		stop = 2
	}
	return fmt.Sprintf("%d %d%s%d", m.BaudRate, m.DataBits, p, stop)
}

func (m Mode) validate() error {
	if m.DataBits < 5 || m.DataBits > 8 {
		return fmt.Errorf("serial: invalid data bits %d", m.DataBits)
	}
	switch m.StopBits {
	case OneStopBit, TwoStopBits:
	default:
		return fmt.Errorf("serial: invalid stop bits %d", m.StopBits)
	}
	switch m.Parity {
	case NoParity, OddParity, EvenParity:
	default:
		return fmt.Errorf("serial: invalid parity %d", m.Parity)
	}
	return nil
}
