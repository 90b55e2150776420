// Package serial provides the byte transport used by the MH-Z19B driver: a
// serial port that is opened and configured separately, reads fixed-size
// blocks with a bounded blocking timeout and reports how many bytes are
// waiting in the input queue.
//
// On Linux the port is driven directly through termios ioctls, poll(2) and
// TIOCINQ, with no buffering between the kernel and the caller. A self-pipe
// lets Close unblock a Read that is waiting for data. Other platforms use
// go.bug.st/serial underneath.
//
// Example usage:
//
//	p := serial.New("/dev/ttyUSB0")
//	if err := p.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	err := p.Configure(serial.Mode{BaudRate: 9600, DataBits: 8})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = p.SetReadTimeout(time.Second)
//
//	_, err = p.Write(frame)
//	buf := make([]byte, 9)
//	n, err := p.Read(buf) // blocks until 9 bytes or the timeout
package serial
