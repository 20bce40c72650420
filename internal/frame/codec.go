package frame

import (
	"encoding/binary"

	"github.com/olliw-labs/mlrs-tx/internal/channels"
)

// CheckResult is the outcome of validating a received frame.
type CheckResult int

const (
	CheckOK CheckResult = iota
	CheckErrSyncword
	CheckErrCRC
	CheckErrOther
)

func (r CheckResult) String() string {
	switch r {
	case CheckOK:
		return "OK"
	case CheckErrSyncword:
		return "ERR_SYNCWORD"
	case CheckErrCRC:
		return "ERR_CRC"
	default:
		return "ERR_OTHER"
	}
}

// StatsInput carries the per-cycle status fields the caller wants packed
// into the outgoing frame's header — everything pack_tx needs besides the
// channel data and payload.
type StatsInput struct {
	SeqNo           uint8
	Ack             bool
	Antenna         bool
	TransmitAntenna bool
	RssiU7          uint8
	LQ              uint8
	LQSerialData    uint8
}

// Codec packs and validates wire frames for a fixed sync word.
type Codec struct {
	SyncWord uint16
}

// NewCodec returns a Codec bound to the given syncword.
func NewCodec(syncWord uint16) *Codec {
	return &Codec{SyncWord: syncWord}
}

func flagsByte(st StatsInput, ft Type) byte {
	var b byte
	if st.Ack {
		b |= 1 << 0
	}
	if st.Antenna {
		b |= 1 << 1
	}
	if st.TransmitAntenna {
		b |= 1 << 2
	}
	b |= byte(ft&0x3) << 3
	return b
}

// PackTX packs a NORMAL tx frame carrying up to TxPayloadLen tunneled
// serial bytes.
func (c *Codec) PackTX(dst []byte, st StatsInput, rc *channels.RcData, payload []byte) {
	c.packCommon(dst, st, TypeTXNormal, rc, payload)
}

// PackTXCmd packs a command tx frame. Command frames never carry user
// serial payload — cmdPayload displaces it for that cycle.
func (c *Codec) PackTXCmd(dst []byte, st StatsInput, rc *channels.RcData, cmdPayload []byte) {
	c.packCommon(dst, st, TypeTXCmd, rc, cmdPayload)
}

func (c *Codec) packCommon(dst []byte, st StatsInput, ft Type, rc *channels.RcData, payload []byte) {
	if len(dst) < Len {
		panic("frame: dst buffer shorter than frame.Len")
	}
	binary.LittleEndian.PutUint16(dst[0:2], c.SyncWord)
	dst[2] = st.SeqNo
	dst[3] = flagsByte(st, ft)
	dst[4] = st.RssiU7 & 0x7F
	dst[5] = st.LQ
	dst[6] = st.LQSerialData

	n := len(payload)
	if n > TxPayloadLen {
		n = TxPayloadLen
	}
	dst[7] = uint8(n)

	off := 8
	for i := 0; i < CoreChannels; i++ {
		var v uint16
		if rc != nil {
			v = rc.Ch[i]
		}
		binary.LittleEndian.PutUint16(dst[off:off+2], v)
		off += 2
	}

	payloadStart := off
	for i := 0; i < TxPayloadLen; i++ {
		if i < n {
			dst[payloadStart+i] = payload[i]
		} else {
			dst[payloadStart+i] = 0
		}
	}

	crc := crc16(dst[SyncWordLen : Len-CRCLen])
	binary.LittleEndian.PutUint16(dst[Len-CRCLen:Len], crc)
}

// CheckRX validates a received wire frame. A syncword mismatch is returned
// as CheckErrSyncword and must never increment any quality counter or
// trigger a state transition — as if no frame was received on that
// antenna. On CheckOK the decoded fields are written into out.
func (c *Codec) CheckRX(buf []byte, out *Frame) CheckResult {
	if len(buf) < Len {
		return CheckErrOther
	}
	syncWord := binary.LittleEndian.Uint16(buf[0:2])
	if syncWord != c.SyncWord {
		return CheckErrSyncword
	}

	gotCRC := binary.LittleEndian.Uint16(buf[Len-CRCLen : Len])
	wantCRC := crc16(buf[SyncWordLen : Len-CRCLen])
	if gotCRC != wantCRC {
		return CheckErrCRC
	}

	out.SyncWord = syncWord
	out.SeqNo = buf[2]
	flags := buf[3]
	out.Ack = flags&(1<<0) != 0
	out.Antenna = flags&(1<<1) != 0
	out.TransmitAntenna = flags&(1<<2) != 0
	out.FrameType = Type((flags >> 3) & 0x3)
	out.RssiU7 = buf[4] & 0x7F
	out.LQ = buf[5]
	out.LQSerialData = buf[6]
	out.PayloadLen = buf[7]

	off := 8
	for i := 0; i < CoreChannels; i++ {
		out.Channels[i] = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
	}
	copy(out.Payload[:], buf[off:off+TxPayloadLen])

	return CheckOK
}
