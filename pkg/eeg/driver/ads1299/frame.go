package ads1299

import "fmt"

// Serial stream framing for the ADS1299 bridge firmware. Each frame is:
//
//	0xA0 | counter | ch0[3] .. chN[3] | checksum
//
// Channel codes are 24-bit big-endian two's complement. The counter
// increments modulo 256 per frame so dropped frames are detectable.
// The checksum is the XOR of every byte between header and checksum.
const (
	frameHeader   = 0xA0
	cmdStream     = 'b'
	cmdStopStream = 's'
)

func frameSize(channels int) int {
	return 2 + 3*channels + 1
}

// parseFrame decodes one complete frame into sign-extended codes.
// buf must be exactly frameSize(channels) bytes starting at the header.
func parseFrame(buf []byte, channels int) ([]int32, byte, error) {
	if buf[0] != frameHeader {
		return nil, 0, fmt.Errorf("bad frame header 0x%02x", buf[0])
	}
	var sum byte
	for _, b := range buf[1 : len(buf)-1] {
		sum ^= b
	}
	if sum != buf[len(buf)-1] {
		return nil, 0, fmt.Errorf("checksum mismatch: computed 0x%02x, frame has 0x%02x", sum, buf[len(buf)-1])
	}

	counter := buf[1]
	codes := make([]int32, channels)
	for ch := 0; ch < channels; ch++ {
		off := 2 + 3*ch
		v := int32(buf[off])<<16 | int32(buf[off+1])<<8 | int32(buf[off+2])
		if v&0x800000 != 0 {
			v -= 1 << 24
		}
		codes[ch] = v
	}
	return codes, counter, nil
}
