//go:build linux

package serial

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Port provides low-latency, killable, fixed-size block access to a Linux
// serial port. Open, Close and the configuration calls are safe for
// concurrent use; Read and Write must be serialized by the caller.
type Port struct {
	name string

	mu      sync.Mutex
	fd      int
	open    bool
	done    chan struct{}
	pipeR   int // self-pipe read fd
	pipeW   int // self-pipe write fd
	timeout time.Duration
}

// New returns an unopened Port for the given device path.
func New(name string) *Port {
	return &Port{name: name, fd: -1, pipeR: -1, pipeW: -1}
}

// Name returns the device path the port was created with.
func (p *Port) Name() string {
	return p.name
}

// Open opens the device and puts it into raw, non-canonical mode.
// Line settings are left to Configure.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil
	}

	fd, err := syscall.Open(p.name, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.name, err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag |= unix.CREAD | unix.CLOCAL

	// Reads are gated by poll, so VMIN/VTIME stay at zero.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("set termios: %w", err)
	}

	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("set blocking: %w", err)
	}

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("pipe: %w", err)
	}

	p.fd = fd
	p.pipeR = pipeFds[0]
	p.pipeW = pipeFds[1]
	p.done = make(chan struct{})
	p.open = true
	return nil
}

// IsOpen reports whether the device is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Configure applies baud rate, character size, stop bits and parity.
func (p *Port) Configure(m Mode) error {
	if err := m.validate(); err != nil {
		return err
	}
	baud, ok := baudToUnix(m.BaudRate)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, m.BaudRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrClosed
	}

	termios, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	termios.Cflag &^= unix.CSIZE
	termios.Cflag |= dataBitsToUnix(m.DataBits)

	termios.Cflag &^= unix.CSTOPB
	if m.StopBits == TwoStopBits {
		termios.Cflag |= unix.CSTOPB
	}

	termios.Cflag &^= unix.PARENB | unix.PARODD
	termios.Iflag &^= unix.INPCK
	switch m.Parity {
	case OddParity:
		termios.Cflag |= unix.PARENB | unix.PARODD
		termios.Iflag |= unix.INPCK
	case EvenParity:
		termios.Cflag |= unix.PARENB
		termios.Iflag |= unix.INPCK
	}

	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// SetReadTimeout sets how long Read blocks waiting for a full block.
// Zero or negative means wait forever.
func (p *Port) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
	return nil
}

// Buffered returns the number of bytes waiting in the kernel input queue.
func (p *Port) Buffered() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, ErrClosed
	}
	n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("TIOCINQ: %w", err)
	}
	return n, nil
}

// Write writes all of b to the port.
func (p *Port) Write(b []byte) (int, error) {
	fd, _, _, ok := p.handles()
	if !ok {
		return 0, ErrClosed
	}
	written := 0
	for written < len(b) {
		n, err := unix.Write(fd, b[written:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return written, fmt.Errorf("write: %w", err)
		}
		written += n
	}
	return written, nil
}

// Read blocks until len(b) bytes have been read, the read timeout expires or
// the port is closed. A timeout returns the bytes read so far with ErrTimeout.
func (p *Port) Read(b []byte) (int, error) {
	fd, pipeR, done, ok := p.handles()
	if !ok {
		return 0, ErrClosed
	}
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	read := 0
	for read < len(b) {
		wait := -1
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return read, ErrTimeout
			}
			wait = int((left + time.Millisecond - 1) / time.Millisecond)
		}

		// Use poll to wait for data or kill signal
		pfd := []unix.PollFd{
			{Fd: int32(fd), Events: unix.POLLIN},
			{Fd: int32(pipeR), Events: unix.POLLIN},
		}
		n, err := unix.Poll(pfd, wait)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return read, fmt.Errorf("poll: %w", err)
		}
		// Check killability
		select {
		case <-done:
			return read, ErrClosed
		default:
		}
		if n == 0 {
			continue
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return read, ErrClosed
		}
		if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && pfd[0].Revents&unix.POLLIN == 0 {
			return read, fmt.Errorf("read: device hung up")
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			m, err := unix.Read(fd, b[read:])
			if err != nil {
				if err == unix.EINTR || err == unix.EAGAIN {
					continue
				}
				return read, fmt.Errorf("read: %w", err)
			}
			if m == 0 {
				return read, fmt.Errorf("read: device hung up")
			}
			read += m
		}
	}
	return read, nil
}

// Close closes the device and unblocks any pending Read.
// Closing a port that is not open is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false
	close(p.done)
	// Wake up poll using self-pipe
	unix.Write(p.pipeW, []byte{1})

	err := syscall.Close(p.fd)
	unix.Close(p.pipeR)
	unix.Close(p.pipeW)
	p.fd, p.pipeR, p.pipeW = -1, -1, -1
	if err != nil {
		return fmt.Errorf("close %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) handles() (fd, pipeR int, done chan struct{}, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fd, p.pipeR, p.done, p.open
}

func baudToUnix(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	default:
		return 0, false
	}
}

func dataBitsToUnix(bits int) uint32 {
	switch bits {
	case 5:
		return unix.CS5
	case 6:
		return unix.CS6
	case 7:
		return unix.CS7
	default:
		return unix.CS8
	}
}
