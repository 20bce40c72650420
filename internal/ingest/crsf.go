// Package ingest adapts tunneled-serial receiver protocols into the
// mainloop.ChannelSource interface (Update(rc *channels.RcData) bool),
// so the control-stick snapshot that gets hopped over the air can come
// from a real RC receiver rather than the tunneled bridge.
package ingest

import (
	"github.com/olliw-labs/mlrs-tx/internal/channels"
	"github.com/olliw-labs/mlrs-tx/internal/serial"
)

const (
	crsfFlightController     = 0xC8
	crsfFrameTypeRCChannels  = 0x16
	crsfPacketSize           = 26
	crsfPayloadStart         = 3
)

type crsfState int

const (
	crsfDestination crsfState = iota
	crsfLength
	crsfType
	crsfPayload
	crsfChecksum
)

// CRSFSource decodes a CRSF (Crossfire/ExpressLRS) RC channel stream read
// byte-by-byte from a serial.Port, one state machine step per available
// byte, entirely on the calling goroutine -- unlike the source firmware's
// dedicated reader goroutine plus packet channel, Update is called from
// the main loop and must never block waiting for bytes.
type CRSFSource struct {
	port serial.Port

	state  crsfState
	packet [crsfPacketSize]byte
	index  int
	length byte
}

// NewCRSFSource returns a CRSFSource reading frames from port.
func NewCRSFSource(port serial.Port) *CRSFSource {
	return &CRSFSource{port: port}
}

// Update drains every byte currently available from the port, applying it
// to the frame state machine, and writes the channel values of the last
// complete, checksum-valid packet into rc. It reports whether rc changed.
func (s *CRSFSource) Update(rc *channels.RcData) bool {
	if f, ok := s.port.(serial.Filler); ok {
		f.Fill()
	}

	updated := false
	for s.port.Available() > 0 {
		b, err := s.port.ReadByte()
		if err != nil {
			break
		}
		if s.feed(b) {
			decodeCRSFChannels(s.packet, rc)
			updated = true
		}
	}
	return updated
}

func (s *CRSFSource) reset() {
	s.index = 0
	s.state = crsfDestination
}

// feed advances the state machine by one byte and reports whether it
// just completed a checksum-valid packet.
func (s *CRSFSource) feed(b byte) bool {
	switch s.state {
	case crsfDestination:
		if b == crsfFlightController {
			s.packet[0] = b
			s.index = 1
			s.state = crsfLength
		}

	case crsfLength:
		if b >= 2 && b <= 64 {
			s.length = b
			s.packet[1] = b
			s.index = 2
			s.state = crsfType
		} else {
			s.reset()
		}

	case crsfType:
		if b == crsfFrameTypeRCChannels {
			s.packet[2] = b
			s.index = 3
			s.state = crsfPayload
		} else {
			s.reset()
		}

	case crsfPayload:
		if s.index >= len(s.packet) {
			s.reset()
			return false
		}
		s.packet[s.index] = b
		s.index++
		if s.index >= int(s.length)+1 {
			s.state = crsfChecksum
		}

	case crsfChecksum:
		ok := crsfCRC8(s.packet[2:s.index]) == b
		s.reset()
		return ok
	}
	return false
}

// decodeCRSFChannels unpacks the 11-bit-per-channel bitstream CRSF carries
// into rc, the same bit-merging logic Betaflight (and the source
// firmware's processReceiverPacket) uses.
func decodeCRSFChannels(packet [crsfPacketSize]byte, rc *channels.RcData) {
	bitstream := packet[crsfPayloadStart : crsfPacketSize-1]

	var bitsMerged uint
	var readValue uint32
	var readByteIndex int

	for n := 0; n < channels.NumChannels; n++ {
		for bitsMerged < 11 {
			if readByteIndex >= len(bitstream) {
				return
			}
			readValue |= uint32(bitstream[readByteIndex]) << bitsMerged
			readByteIndex++
			bitsMerged += 8
		}
		rc.Ch[n] = uint16(readValue & 0x07FF)
		readValue >>= 11
		bitsMerged -= 11
	}
}

// crsfCRC8 computes CRSF's CRC8-DVB-S2 checksum over data.
func crsfCRC8(data []byte) byte {
	crc := byte(0x00)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0xD5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
