// Package cmdchannel implements the in-band command sub-protocol that
// displaces normal tunneled serial payload for a cycle to exchange
// setup/configuration data with the peer: GET_RX_SETUPDATA on boot,
// SET_RX_PARAMS after a local configuration change, and STORE_RX_PARAMS on
// request, each followed by the peer's RX_SETUPDATA or RX_ACK reply.
package cmdchannel

import "github.com/olliw-labs/mlrs-tx/internal/config"

// Command byte tags carried as the first byte of a command frame's
// payload, displacing the tunneled serial payload for that cycle.
const (
	CmdGetRxSetupData byte = 0x01
	CmdSetRxParams    byte = 0x02
	CmdStoreRxParams  byte = 0x03
	CmdRxSetupData    byte = 0x81
	CmdRxAck          byte = 0x82
)

// TransmitFrameType is which kind of tx frame the next cycle should pack:
// a normal tunneled-payload frame, or one of the three outbound commands.
type TransmitFrameType uint8

const (
	Normal TransmitFrameType = iota
	CmdGetRxSetupDataType
	CmdSetRxParamsType
	CmdStoreRxParamsType
)

func (t TransmitFrameType) String() string {
	switch t {
	case Normal:
		return "NORMAL"
	case CmdGetRxSetupDataType:
		return "CMD_GET_RX_SETUPDATA"
	case CmdSetRxParamsType:
		return "CMD_SET_RX_PARAMS"
	case CmdStoreRxParamsType:
		return "CMD_STORE_RX_PARAMS"
	default:
		return "UNKNOWN"
	}
}

// PackGetRxSetupData writes a GET_RX_SETUPDATA command payload.
func PackGetRxSetupData(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = CmdGetRxSetupData
}

// PackStoreRxParams writes a STORE_RX_PARAMS command payload.
func PackStoreRxParams(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = CmdStoreRxParams
}

// PackSetRxParams writes a SET_RX_PARAMS command payload: the command tag
// followed by as many ParamDeltas as fit in the remaining bytes.
func PackSetRxParams(dst []byte, deltas []config.ParamDelta) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = CmdSetRxParams
	config.MarshalParamDeltas(dst[1:], deltas)
}

// UnmarshalRxSetupData decodes an RX_SETUPDATA reply's payload (excluding
// the leading command tag byte) back into a Config snapshot.
func UnmarshalRxSetupData(payload []byte) config.Config {
	return config.UnmarshalSetup(payload)
}

// Channel is the command sub-protocol state. A link engine owns exactly
// one; it starts wanting to fetch the peer's setup data, matching the
// source firmware's boot-time transmit_frame_type initialization.
type Channel struct {
	frameType     TransmitFrameType
	paramChanged  bool
	pendingParams []config.ParamDelta
}

// New returns a Channel primed to request the peer's setup data on the
// first cycle.
func New() *Channel {
	return &Channel{frameType: CmdGetRxSetupDataType}
}

// FrameType reports which kind of frame the current cycle will pack.
func (c *Channel) FrameType() TransmitFrameType { return c.frameType }

// RequestSetParams queues a SET_RX_PARAMS push for the next cycle that
// finds the channel idle (NORMAL). Mirrors setup_rx_param_changed being
// set from the local configuration/CLI path.
func (c *Channel) RequestSetParams(deltas []config.ParamDelta) {
	c.pendingParams = deltas
	c.paramChanged = true
}

// RequestStoreParams forces the next cycle to send STORE_RX_PARAMS,
// regardless of what the channel was doing.
func (c *Channel) RequestStoreParams() {
	c.frameType = CmdStoreRxParamsType
}

// PreparePack must be called once per cycle, before packing the outgoing
// frame. It promotes a queued RequestSetParams into an active
// CMD_SET_RX_PARAMS frame type exactly when the channel is otherwise idle,
// so a pending param push never interrupts an in-flight command exchange.
func (c *Channel) PreparePack() TransmitFrameType {
	if c.paramChanged && c.frameType == Normal {
		c.paramChanged = false
		c.frameType = CmdSetRxParamsType
	}
	return c.frameType
}

// PackPayload writes the command payload (if any) for the frame type
// PreparePack just returned. For Normal it does nothing; the caller packs
// the tunneled serial payload itself.
func (c *Channel) PackPayload(dst []byte) {
	switch c.frameType {
	case CmdGetRxSetupDataType:
		PackGetRxSetupData(dst)
	case CmdSetRxParamsType:
		PackSetRxParams(dst, c.pendingParams)
	case CmdStoreRxParamsType:
		PackStoreRxParams(dst)
	}
}

// ProcessReceivedCmdFrame handles a received RX-side command frame's
// payload: RX_SETUPDATA or RX_ACK both return the channel to NORMAL, since
// receiving either means the outstanding command was satisfied. Any other
// or empty payload is ignored.
func (c *Channel) ProcessReceivedCmdFrame(payload []byte) (setup config.Config, gotSetup, gotAck bool) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case CmdRxSetupData:
		setup = UnmarshalRxSetupData(payload[1:])
		gotSetup = true
		c.frameType = Normal
	case CmdRxAck:
		gotAck = true
		c.frameType = Normal
	}
	return
}
