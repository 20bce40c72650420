package cmdchannel

import (
	"testing"

	"github.com/olliw-labs/mlrs-tx/internal/config"
)

func TestBootStartsWithGetRxSetupData(t *testing.T) {
	c := New()
	if got := c.FrameType(); got != CmdGetRxSetupDataType {
		t.Fatalf("FrameType() at boot = %v, want CMD_GET_RX_SETUPDATA", got)
	}
}

// TestGetSetupDataHandshake is scenario S4: the channel returns to NORMAL
// once the peer's RX_SETUPDATA reply arrives, decoding the Setup it carried.
func TestGetSetupDataHandshake(t *testing.T) {
	c := New()
	want := config.Default()
	want.Fhss.Num = 20
	want.Tx.ChannelOrder = "etar"

	payload := make([]byte, 1+config.SetupWireLen)
	payload[0] = CmdRxSetupData
	config.MarshalSetup(payload[1:], want)

	setup, gotSetup, gotAck := c.ProcessReceivedCmdFrame(payload)
	if !gotSetup || gotAck {
		t.Fatalf("gotSetup=%v gotAck=%v, want gotSetup=true gotAck=false", gotSetup, gotAck)
	}
	if setup.Fhss.Num != 20 || setup.Tx.ChannelOrder != "etar" {
		t.Fatalf("decoded setup = %+v, unexpected", setup)
	}
	if c.FrameType() != Normal {
		t.Fatalf("FrameType() after RX_SETUPDATA = %v, want NORMAL", c.FrameType())
	}
}

// TestSetParamsHandshake is scenario S5: a queued param push activates only
// once the channel is idle, and an RX_ACK returns it to NORMAL.
func TestSetParamsHandshake(t *testing.T) {
	c := New()
	// Boot sequence occupies the channel with GET_RX_SETUPDATA first.
	bootPayload := make([]byte, 1+config.SetupWireLen)
	bootPayload[0] = CmdRxSetupData
	config.MarshalSetup(bootPayload[1:], config.Default())
	c.ProcessReceivedCmdFrame(bootPayload)
	if c.FrameType() != Normal {
		t.Fatal("expected NORMAL after boot handshake completes")
	}

	deltas := []config.ParamDelta{{ID: config.ParamChannelOrder, Value: 2}}
	c.RequestSetParams(deltas)
	if got := c.PreparePack(); got != CmdSetRxParamsType {
		t.Fatalf("PreparePack() = %v, want CMD_SET_RX_PARAMS", got)
	}

	buf := make([]byte, 8)
	c.PackPayload(buf)
	if buf[0] != CmdSetRxParams {
		t.Fatalf("packed payload tag = %#x, want CmdSetRxParams", buf[0])
	}
	got := config.UnmarshalParamDeltas(buf[1:])
	if len(got) != 1 || got[0].ID != config.ParamChannelOrder || got[0].Value != 2 {
		t.Fatalf("decoded deltas = %+v, unexpected", got)
	}

	_, _, gotAck := c.ProcessReceivedCmdFrame([]byte{CmdRxAck})
	if !gotAck {
		t.Fatal("expected RX_ACK to be recognized")
	}
	if c.FrameType() != Normal {
		t.Fatalf("FrameType() after RX_ACK = %v, want NORMAL", c.FrameType())
	}
}

func TestParamPushDoesNotInterruptInFlightCommand(t *testing.T) {
	c := New() // starts in CMD_GET_RX_SETUPDATA
	c.RequestSetParams([]config.ParamDelta{{ID: config.ParamChannelOrder, Value: 1}})
	if got := c.PreparePack(); got != CmdGetRxSetupDataType {
		t.Fatalf("PreparePack() while a command is in flight = %v, want it to stay CMD_GET_RX_SETUPDATA", got)
	}
}

func TestStoreParamsForcesFrameType(t *testing.T) {
	c := New()
	bootPayload := make([]byte, 1+config.SetupWireLen)
	bootPayload[0] = CmdRxSetupData
	config.MarshalSetup(bootPayload[1:], config.Default())
	c.ProcessReceivedCmdFrame(bootPayload)

	c.RequestStoreParams()
	if got := c.FrameType(); got != CmdStoreRxParamsType {
		t.Fatalf("FrameType() after RequestStoreParams = %v, want CMD_STORE_RX_PARAMS", got)
	}
	buf := make([]byte, 4)
	c.PackPayload(buf)
	if buf[0] != CmdStoreRxParams {
		t.Fatalf("packed payload tag = %#x, want CmdStoreRxParams", buf[0])
	}
}

func TestUnrecognizedPayloadIgnored(t *testing.T) {
	c := New()
	before := c.FrameType()
	_, gotSetup, gotAck := c.ProcessReceivedCmdFrame([]byte{0x00})
	if gotSetup || gotAck {
		t.Fatal("unrecognized command tag must not be treated as setup data or ack")
	}
	if c.FrameType() != before {
		t.Fatalf("FrameType() changed on unrecognized payload: %v -> %v", before, c.FrameType())
	}
}
