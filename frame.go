package mhz19b

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameSize is the length of every request and response frame.
const FrameSize = 9

const (
	startByte     byte = 0xff
	sensorAddress byte = 0x01
)

// Command bytes.
const (
	cmdGasConcentration  byte = 0x86
	cmdCalibrateZero     byte = 0x87
	cmdCalibrateSpan     byte = 0x88
	cmdAutoCalibration   byte = 0x79
	cmdDetectionRange    byte = 0x99
	autoCalibrationOnArg byte = 0xa0
)

// PPM is a CO2 concentration in parts per million.
type PPM int

func (p PPM) String() string {
	return fmt.Sprintf("%d PPM", int(p))
}

// Frame is a complete request frame including its checksum.
type Frame [FrameSize]byte

// The two frames the sensor documents with a literal checksum.
var (
	frameGasConcentration = Frame{0xff, 0x01, 0x86, 0x00, 0x00, 0x00, 0x00, 0x00, 0x79}
	frameCalibrateZero    = Frame{0xff, 0x01, 0x87, 0x00, 0x00, 0x00, 0x00, 0x00, 0x78}
)

// NewFrame assembles a request for the given command and parameters and
// appends its checksum.
func NewFrame(code, p0, p1, p2, p3, p4 byte) Frame {
	f := Frame{startByte, sensorAddress, code, p0, p1, p2, p3, p4}
	f[FrameSize-1] = Checksum(f[:FrameSize-1])
	return f
}

// newWordFrame builds a frame whose first two parameters carry v big-endian.
func newWordFrame(code byte, v uint16) Frame {
	return NewFrame(code, byte(v>>8), byte(v), 0, 0, 0)
}

// Checksum returns the two's complement of the sum of base[1:8], so that
// bytes 1 through 8 of the finished frame add up to zero modulo 256.
// base must hold at least 8 bytes.
func Checksum(base []byte) byte {
	var sum byte
	for _, b := range base[1:8] {
		sum += b
	}
	return ^sum + 1
}

// Bytes returns the frame as a slice.
func (f Frame) Bytes() []byte {
	return f[:]
}

// String returns the frame as space separated hex bytes.
func (f Frame) String() string {
	return hexDump(f[:])
}

func hexDump(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// Decoding selects how the two concentration bytes of a response are combined.
type Decoding int

const (
	// DecodeDecimalAsHex renders each payload byte, taken as a signed 8-bit
	// value, as a decimal numeral and parses that numeral as hexadecimal
	// before combining high*256+low. Readings match the values reported by
	// the long-deployed Java driver for the same sensor.
	DecodeDecimalAsHex Decoding = iota
	// DecodeBigEndian combines the payload bytes as (high<<8)|low, as the
	// datasheet describes.
	DecodeBigEndian
)

func (d Decoding) String() string {
	switch d {
	case DecodeDecimalAsHex:
		return "legacy"
	case DecodeBigEndian:
		return "bigendian"
	default:
		return fmt.Sprintf("Decoding(%d)", int(d))
	}
}

// ParseDecoding maps a configuration name to a Decoding.
func ParseDecoding(s string) (Decoding, error) {
	switch strings.ToLower(s) {
	case "", "legacy":
		return DecodeDecimalAsHex, nil
	case "bigendian", "big-endian", "datasheet":
		return DecodeBigEndian, nil
	default:
		return 0, fmt.Errorf("mhz19b: unknown decoding %q", s)
	}
}

// DecodeConcentration extracts the concentration from a 9-byte response.
func DecodeConcentration(resp []byte, d Decoding) (PPM, error) {
	if len(resp) != FrameSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrShortResponse, len(resp))
	}
	high, low := resp[2], resp[3]
	switch d {
	case DecodeBigEndian:
		return PPM(int(high)<<8 | int(low)), nil
	case DecodeDecimalAsHex:
		return PPM(decimalAsHex(high)*256 + decimalAsHex(low)), nil
	default:
		return 0, fmt.Errorf("mhz19b: unknown decoding %d", int(d))
	}
}

// decimalAsHex never fails: a decimal numeral, with an optional minus sign,
// is always valid hexadecimal.
func decimalAsHex(b byte) int {
	v, _ := strconv.ParseInt(strconv.Itoa(int(int8(b))), 16, 32)
	return int(v)
}
