// Package channels holds the RC channel snapshot shared between the
// receiver-input path and the frame-packing path, plus the stick channel
// order mapping applied to channels 0-3 before use.
package channels

import "fmt"

// NumChannels is the number of RC channels carried in RcData.
const NumChannels = 16

// RcData is the current RC channel snapshot. It is mutated only from the
// channel source ingest path and read only while a frame is being packed;
// both happen on the main loop, never from an interrupt.
type RcData struct {
	Ch [NumChannels]uint16
}

// Order selects the permutation applied to the first four channels
// (the analog stick roles) before they are used.
type Order uint8

const (
	AETR Order = iota
	TAER
	ETAR
)

func (o Order) String() string {
	switch o {
	case AETR:
		return "AETR"
	case TAER:
		return "TAER"
	case ETAR:
		return "ETAR"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// ErrOrderUndefined is returned by ChannelOrder.Set for orders whose
// mapping the source firmware left as a TODO (CHANNEL_ORDER_TAER). We
// refuse the value rather than silently behaving like AETR.
var ErrOrderUndefined = fmt.Errorf("channel order not defined")

// ChannelOrder holds the current channel-role permutation and applies it
// to the first four channels of an RcData snapshot.
type ChannelOrder struct {
	order    Order
	set      bool
	chanMap  [4]uint8
}

// NewChannelOrder returns a ChannelOrder defaulting to the identity (AETR) map.
func NewChannelOrder() *ChannelOrder {
	return &ChannelOrder{chanMap: [4]uint8{0, 1, 2, 3}}
}

// Set installs a new channel order. It is a no-op if the order is already
// in effect, matching the teacher firmware's ChannelOrder::Set early-out.
func (c *ChannelOrder) Set(order Order) error {
	if c.set && c.order == order {
		return nil
	}
	switch order {
	case AETR:
		c.chanMap = [4]uint8{0, 1, 2, 3}
	case ETAR:
		c.chanMap = [4]uint8{2, 0, 1, 3}
	case TAER:
		return ErrOrderUndefined
	default:
		return fmt.Errorf("channels: unknown order %d", order)
	}
	c.order = order
	c.set = true
	return nil
}

// Apply permutes the first four channels of rc in place per the current order.
func (c *ChannelOrder) Apply(rc *RcData) {
	var ch [4]uint16
	copy(ch[:], rc.Ch[:4])
	for n := 0; n < 4; n++ {
		rc.Ch[n] = ch[c.chanMap[n]]
	}
}
