package frame

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/olliw-labs/mlrs-tx/internal/channels"
)

// TestPackCheckRoundTrip is testable property 2: pack_tx then check_rx
// yields OK and parsed fields equal to the inputs, for all valid payload
// lengths.
func TestPackCheckRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewCodec(DefaultSyncWord)
		st := StatsInput{
			SeqNo:           uint8(rapid.IntRange(0, 255).Draw(rt, "seq")),
			Ack:             rapid.Bool().Draw(rt, "ack"),
			Antenna:         rapid.Bool().Draw(rt, "antenna"),
			TransmitAntenna: rapid.Bool().Draw(rt, "txant"),
			RssiU7:          uint8(rapid.IntRange(0, 127).Draw(rt, "rssi")),
			LQ:              uint8(rapid.IntRange(0, 100).Draw(rt, "lq")),
			LQSerialData:    uint8(rapid.IntRange(0, 100).Draw(rt, "lqsd")),
		}
		var rc channels.RcData
		for i := range rc.Ch {
			rc.Ch[i] = uint16(rapid.IntRange(0, 65535).Draw(rt, "ch"))
		}
		n := rapid.IntRange(0, TxPayloadLen).Draw(rt, "n")
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(rapid.IntRange(0, 255).Draw(rt, "pbyte"))
		}

		buf := make([]byte, Len)
		c.PackTX(buf, st, &rc, payload)

		var out Frame
		res := c.CheckRX(buf, &out)
		if res != CheckOK {
			rt.Fatalf("CheckRX = %v, want OK", res)
		}
		if out.SeqNo != st.SeqNo || out.Ack != st.Ack || out.Antenna != st.Antenna ||
			out.TransmitAntenna != st.TransmitAntenna || out.RssiU7 != st.RssiU7 ||
			out.LQ != st.LQ || out.LQSerialData != st.LQSerialData {
			rt.Fatalf("header round-trip mismatch: got %+v, want %+v", out, st)
		}
		if out.PayloadLen != uint8(n) {
			rt.Fatalf("PayloadLen = %d, want %d", out.PayloadLen, n)
		}
		for i := 0; i < CoreChannels; i++ {
			if out.Channels[i] != rc.Ch[i] {
				rt.Fatalf("channel %d = %d, want %d", i, out.Channels[i], rc.Ch[i])
			}
		}
		for i := 0; i < n; i++ {
			if out.Payload[i] != payload[i] {
				rt.Fatalf("payload[%d] = %x, want %x", i, out.Payload[i], payload[i])
			}
		}
	})
}

// TestBadSyncwordNeverParses is testable property 3: a frame whose first
// two bytes differ from the configured syncword is reported distinctly and
// never treated as a parsed frame.
func TestBadSyncwordNeverParses(t *testing.T) {
	c := NewCodec(0xA5A5)
	var rc channels.RcData
	buf := make([]byte, Len)
	c.PackTX(buf, StatsInput{}, &rc, nil)

	buf[0] = 0x00
	buf[1] = 0x00

	var out Frame
	res := c.CheckRX(buf, &out)
	if res != CheckErrSyncword {
		t.Fatalf("CheckRX with corrupted syncword = %v, want ERR_SYNCWORD", res)
	}
}

func TestCorruptedCRCDetected(t *testing.T) {
	c := NewCodec(DefaultSyncWord)
	var rc channels.RcData
	buf := make([]byte, Len)
	c.PackTX(buf, StatsInput{}, &rc, []byte("hello"))
	buf[10] ^= 0xFF // flip a channel byte, invalidating the CRC

	var out Frame
	res := c.CheckRX(buf, &out)
	if res != CheckErrCRC {
		t.Fatalf("CheckRX with corrupted payload = %v, want ERR_CRC", res)
	}
}

func TestPackTXCmdDisplacesPayload(t *testing.T) {
	c := NewCodec(DefaultSyncWord)
	var rc channels.RcData
	buf := make([]byte, Len)
	c.PackTXCmd(buf, StatsInput{}, &rc, []byte{0x01})

	var out Frame
	if res := c.CheckRX(buf, &out); res != CheckOK {
		t.Fatalf("CheckRX(cmd frame) = %v", res)
	}
	if out.FrameType != TypeTXCmd {
		t.Fatalf("FrameType = %v, want TypeTXCmd", out.FrameType)
	}
	if out.Payload[0] != 0x01 {
		t.Fatalf("cmd payload byte = %x, want 0x01", out.Payload[0])
	}
}
