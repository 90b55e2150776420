package mhz19b

import (
	"time"

	"github.com/luhtfiimanal/go-mhz19b/serial"
)

// Transport is the serial handle a Driver talks through. *serial.Port
// implements it.
type Transport interface {
	Name() string
	Open() error
	Close() error
	IsOpen() bool
	Configure(serial.Mode) error
	SetReadTimeout(time.Duration) error
	// Buffered returns the number of bytes that can be read without blocking.
	Buffered() (int, error)
	// Read blocks until len(p) bytes arrived or the read timeout expired.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// TransportFactory returns an unopened Transport for a port identifier.
type TransportFactory func(port string) Transport

func newSerialTransport(port string) Transport {
	return serial.New(port)
}

// lineMode is the sensor's fixed UART setting.
var lineMode = serial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	StopBits: serial.OneStopBit,
	Parity:   serial.NoParity,
}
