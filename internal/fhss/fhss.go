// Package fhss implements the deterministic frequency-hopping schedule
// shared by both ends of the radio link. Given the same channel count and
// seed, two independent instances produce identical hop sequences.
package fhss

const (
	// BaseFreqHz and ChannelSpacingHz define the frequency table the hop
	// index resolves into. These match the ISM sub-band spacing typically
	// used by SX12xx-class transceivers in the 2.4GHz band.
	BaseFreqHz      = 2400000000
	ChannelSpacingHz = 1000000

	// MaxChannels bounds the hop table so it can live in a fixed array
	// with no heap allocation, per the no-dynamic-memory requirement.
	MaxChannels = 80
)

// Fhss is a deterministic pseudo-random hop sequence over a fixed channel
// count. It advances exactly once per cycle, in the cycle's TRANSMIT entry.
type Fhss struct {
	num    int
	seed   uint32
	table  [MaxChannels]uint8 // permutation of channel indices 0..num-1
	currI  int
}

// New returns an uninitialized Fhss; call Init before use.
func New() *Fhss {
	return &Fhss{}
}

// Init deterministically (re)builds the hop table for num channels using
// seed. The same (num, seed) pair always yields the same table, which is
// the property both ends of the link depend on to stay synchronized.
func (f *Fhss) Init(num int, seed uint32) {
	if num < 1 {
		num = 1
	}
	if num > MaxChannels {
		num = MaxChannels
	}
	f.num = num
	f.seed = seed
	f.currI = 0

	for i := 0; i < num; i++ {
		f.table[i] = uint8(i)
	}

	rng := lcg{state: seed}
	// Fisher-Yates shuffle driven by the deterministic LCG: every channel
	// appears exactly once per pass through the table (one epoch).
	for i := num - 1; i > 0; i-- {
		j := int(rng.next() % uint32(i+1))
		f.table[i], f.table[j] = f.table[j], f.table[i]
	}
}

// StartTx positions the index at the starting slot for the transmitting
// role. Both TX and RX begin an epoch at index 0 so their schedules line
// up from the first cycle.
func (f *Fhss) StartTx() {
	f.currI = 0
}

// HopToNext advances the schedule by exactly one step. Must be called at
// most once per cycle, from the cycle's TRANSMIT entry.
func (f *Fhss) HopToNext() {
	if f.num == 0 {
		return
	}
	f.currI = (f.currI + 1) % f.num
}

// CurrFreq returns the frequency in Hz scheduled for the slot the index is
// currently on — the slot for the cycle now executing.
func (f *Fhss) CurrFreq() uint32 {
	if f.num == 0 {
		return BaseFreqHz
	}
	ch := f.table[f.currI]
	return BaseFreqHz + uint32(ch)*ChannelSpacingHz
}

// CurrIndex exposes the raw hop-table index, used by TxStats for the
// per-cycle diagnostic snapshot (fhss_curr_i in the original firmware).
func (f *Fhss) CurrIndex() int {
	return f.currI
}

// NumChannels reports the configured channel count.
func (f *Fhss) NumChannels() int {
	return f.num
}

// lcg is a minimal deterministic linear congruential generator. It exists
// so the hop table construction needs no imports and no global RNG state,
// keeping Fhss self-contained and reproducible byte-for-byte across
// platforms (important: TX and RX firmware run on different MCUs but must
// derive the same table).
type lcg struct {
	state uint32
}

func (r *lcg) next() uint32 {
	// Numerical Recipes constants.
	r.state = r.state*1664525 + 1013904223
	return r.state
}
