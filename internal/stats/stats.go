package stats

import "github.com/olliw-labs/mlrs-tx/internal/radio"

// Stats is the per-cycle diagnostic snapshot: what was last sent, what
// was last received, and what the peer reported about its own reception.
// Main-loop-only; never touched from an ISR.
type Stats struct {
	TransmitSeqNo uint8

	LastTxAntenna radio.Antenna
	LastRxAntenna radio.Antenna

	LastRxRSSI1, LastRxSNR1 int8
	LastRxRSSI2, LastRxSNR2 int8

	// Fields mirrored from the peer's frame header — what the peer says
	// about its own last reception of us.
	ReceivedAntenna         bool
	ReceivedTransmitAntenna bool
	ReceivedRSSI            int8
	ReceivedLQ              uint8
	ReceivedLQSerialData    uint8

	ReceivedSeqNoLast uint8
	ReceivedAckLast   bool

	BytesTransmitted           uint32
	BytesReceived              uint32
	FreshSerialDataTransmitted uint32
	FreshSerialDataReceived    uint32
}

// GetLastRxRSSI returns the RSSI of whichever antenna was last selected
// for reception.
func (s *Stats) GetLastRxRSSI() int8 {
	if s.LastRxAntenna == radio.Antenna2 {
		return s.LastRxRSSI2
	}
	return s.LastRxRSSI1
}

// Clear resets the per-cycle telemetry fields while NOT connected, per
// spec.md §4.6. TransmitSeqNo is a free-running counter and is not reset.
func (s *Stats) Clear() {
	seq := s.TransmitSeqNo
	*s = Stats{TransmitSeqNo: seq}
}
