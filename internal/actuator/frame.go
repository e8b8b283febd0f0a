package actuator

import (
	"errors"
	"fmt"

	"github.com/snksoft/crc"
)

// Wire frame layout:
//
//	[0xA5] [channel] [int8 power] [crc hi] [crc lo]
//
// The CRC is CRC-16/XMODEM over the channel and power bytes.
const (
	frameStart = 0xA5
	FrameSize  = 5
)

var (
	ErrFrameLength = errors.New("actuator: bad frame length")
	ErrFrameStart  = errors.New("actuator: bad start byte")
	ErrFrameCRC    = errors.New("actuator: crc mismatch")
	ErrFrameRange  = errors.New("actuator: value out of range")
)

var crcTable = crc.NewTable(crc.XMODEM)

func checksum(b []byte) uint16 {
	return uint16(crcTable.CalculateCRC(b))
}

// EncodeFrame packs a channel power command.
func EncodeFrame(channel, power int) ([]byte, error) {
	if channel < 0 || channel > 0xFF {
		return nil, fmt.Errorf("%w: channel %d", ErrFrameRange, channel)
	}
	if power < -127 || power > 127 {
		return nil, fmt.Errorf("%w: power %d", ErrFrameRange, power)
	}

	buf := make([]byte, FrameSize)
	buf[0] = frameStart
	buf[1] = byte(channel)
	buf[2] = byte(int8(power))
	sum := checksum(buf[1:3])
	buf[3] = byte(sum >> 8)
	buf[4] = byte(sum)
	return buf, nil
}

// DecodeFrame unpacks and verifies a frame produced by EncodeFrame.
func DecodeFrame(b []byte) (channel, power int, err error) {
	if len(b) != FrameSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(b))
	}
	if b[0] != frameStart {
		return 0, 0, fmt.Errorf("%w: %#x", ErrFrameStart, b[0])
	}
	want := uint16(b[3])<<8 | uint16(b[4])
	if got := checksum(b[1:3]); got != want {
		return 0, 0, fmt.Errorf("%w: got %#04x want %#04x", ErrFrameCRC, got, want)
	}
	return int(b[1]), int(int8(b[2])), nil
}
