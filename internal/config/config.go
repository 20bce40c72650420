// Package config holds the boot-time configuration loaded once from YAML
// (gopkg.in/yaml.v3) before any internal/* package runs, plus the
// fixed-size wire encoding used to exchange Setup snapshots over the
// command channel and the ParamDelta encoding used by SET_RX_PARAMS.
package config

import (
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/olliw-labs/mlrs-tx/internal/channels"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
	"github.com/olliw-labs/mlrs-tx/internal/serial"
)

// Config is the root of the YAML document.
type Config struct {
	Fhss    FhssConfig    `yaml:"fhss"`
	Frame   FrameConfig   `yaml:"frame"`
	Link    LinkConfig    `yaml:"link"`
	Tx      TxConfig      `yaml:"tx"`
	Antenna AntennaConfig `yaml:"antenna"`
}

type FhssConfig struct {
	Num  int    `yaml:"num"`
	Seed uint32 `yaml:"seed"`
}

type FrameConfig struct {
	SyncWord uint16 `yaml:"syncword"`
	RateMs   uint32 `yaml:"rate_ms"`
}

type LinkConfig struct {
	LQAveragingPeriod  int    `yaml:"lq_averaging_period"`
	ConnectTmoSysticks uint32 `yaml:"connect_tmo_systicks"`
	ConnectSyncCnt     uint8  `yaml:"connect_sync_cnt"`
}

type TxConfig struct {
	SerialDestination string `yaml:"serial_destination"`
	ChannelsSource    string `yaml:"channels_source"`
	ChannelOrder      string `yaml:"channel_order"`
	SerialLinkMode    string `yaml:"serial_link_mode"`
	InMode            string `yaml:"in_mode"`
}

type AntennaConfig struct {
	UseAntenna1       bool `yaml:"use_antenna1"`
	UseAntenna2       bool `yaml:"use_antenna2"`
	TimeoutAbortsBoth bool `yaml:"timeout_aborts_both"`
}

// Default returns the configuration the boot-time schema's own example
// document describes, used when no file is supplied.
func Default() Config {
	return Config{
		Fhss:  FhssConfig{Num: 40, Seed: 1234},
		Frame: FrameConfig{SyncWord: 0xA5A5, RateMs: 10},
		Link:  LinkConfig{LQAveragingPeriod: 100, ConnectTmoSysticks: 100, ConnectSyncCnt: 3},
		Tx: TxConfig{
			SerialDestination: "bridge",
			ChannelsSource:     "inport",
			ChannelOrder:       "aetr",
			SerialLinkMode:     "raw",
			InMode:             "sbus",
		},
		Antenna: AntennaConfig{UseAntenna1: true, UseAntenna2: true, TimeoutAbortsBoth: true},
	}
}

// Load decodes a YAML document from r into a Config seeded with Default(),
// so a partial document only overrides the fields it mentions.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// ChannelOrder resolves the configured stick order string into a
// channels.Order, erroring exactly when channels.ChannelOrder.Set would.
func (c Config) ChannelOrder() (channels.Order, error) {
	switch c.Tx.ChannelOrder {
	case "aetr", "":
		return channels.AETR, nil
	case "taer":
		return channels.TAER, fmt.Errorf("config: channel_order %q: %w", c.Tx.ChannelOrder, channels.ErrOrderUndefined)
	case "etar":
		return channels.ETAR, nil
	default:
		return 0, fmt.Errorf("config: unknown channel_order %q", c.Tx.ChannelOrder)
	}
}

// SerialDestination resolves the configured destination string.
func (c Config) SerialDestination() serial.Destination {
	switch c.Tx.SerialDestination {
	case "bridge":
		return serial.DestinationBridge
	case "serial":
		return serial.DestinationSerial
	default:
		return serial.DestinationNone
	}
}

// DiversityMode resolves the antenna section into a radio.DiversityMode.
// Neither antenna enabled is treated the same as antenna-1-only, since the
// link cannot function with no active antenna at all.
func (c Config) DiversityMode() radio.DiversityMode {
	switch {
	case c.Antenna.UseAntenna1 && c.Antenna.UseAntenna2:
		return radio.ModeBoth
	case c.Antenna.UseAntenna2:
		return radio.ModeAntenna2Only
	default:
		return radio.ModeAntenna1Only
	}
}

// ParamID names one field a SET_RX_PARAMS delta can carry.
type ParamID uint8

const (
	ParamChannelOrder ParamID = iota
	ParamSerialLinkMode
)

// ParamDelta is one name+value pair inside a SET_RX_PARAMS command
// payload: a 1-byte id followed by a 4-byte little-endian value.
type ParamDelta struct {
	ID    ParamID
	Value uint32
}

const paramDeltaLen = 5

// MarshalParamDeltas packs deltas into dst, as many as fit in
// FrameTxPayloadLen-1 (the command tag occupies the first byte), and
// returns the number of bytes written.
func MarshalParamDeltas(dst []byte, deltas []ParamDelta) int {
	off := 0
	for _, d := range deltas {
		if off+paramDeltaLen > len(dst) {
			break
		}
		dst[off] = byte(d.ID)
		binary.LittleEndian.PutUint32(dst[off+1:off+5], d.Value)
		off += paramDeltaLen
	}
	return off
}

// UnmarshalParamDeltas decodes as many complete deltas as fit in src.
func UnmarshalParamDeltas(src []byte) []ParamDelta {
	var out []ParamDelta
	for off := 0; off+paramDeltaLen <= len(src); off += paramDeltaLen {
		out = append(out, ParamDelta{
			ID:    ParamID(src[off]),
			Value: binary.LittleEndian.Uint32(src[off+1 : off+5]),
		})
	}
	return out
}

// Setup is the fixed-size wire snapshot of Config exchanged as the
// RX_SETUPDATA reply payload.
const SetupWireLen = 20

func serialDestinationByte(d serial.Destination) byte {
	switch d {
	case serial.DestinationBridge:
		return 1
	case serial.DestinationSerial:
		return 2
	default:
		return 0
	}
}

func serialDestinationFromByte(b byte) serial.Destination {
	switch b {
	case 1:
		return serial.DestinationBridge
	case 2:
		return serial.DestinationSerial
	default:
		return serial.DestinationNone
	}
}

func channelOrderByte(o channels.Order) byte { return byte(o) }

func channelOrderFromByte(b byte) channels.Order { return channels.Order(b) }

// MarshalSetup encodes cfg into dst (which must be at least SetupWireLen
// bytes) for the RX_SETUPDATA reply.
func MarshalSetup(dst []byte, cfg Config) {
	if len(dst) < SetupWireLen {
		panic("config: dst buffer shorter than SetupWireLen")
	}
	for i := range dst[:SetupWireLen] {
		dst[i] = 0
	}
	dst[0] = uint8(cfg.Fhss.Num)
	binary.LittleEndian.PutUint32(dst[1:5], cfg.Fhss.Seed)
	binary.LittleEndian.PutUint16(dst[5:7], cfg.Frame.SyncWord)
	dst[7] = uint8(cfg.Frame.RateMs)
	dst[8] = uint8(cfg.Link.LQAveragingPeriod)
	binary.LittleEndian.PutUint16(dst[9:11], uint16(cfg.Link.ConnectTmoSysticks))
	dst[11] = cfg.Link.ConnectSyncCnt
	if cfg.Tx.ChannelsSource == "bridge" {
		dst[12] = serialDestinationByte(serial.DestinationBridge)
	}
	order, _ := cfg.ChannelOrder()
	dst[13] = channelOrderByte(order)
	if cfg.Tx.SerialLinkMode == "mavlink" {
		dst[14] = 1
	}
	var flags byte
	if cfg.Antenna.UseAntenna1 {
		flags |= 1 << 0
	}
	if cfg.Antenna.UseAntenna2 {
		flags |= 1 << 1
	}
	if cfg.Antenna.TimeoutAbortsBoth {
		flags |= 1 << 2
	}
	dst[15] = flags
}

// UnmarshalSetup decodes a RX_SETUPDATA reply payload back into a Config,
// starting from Default() for any field the wire encoding does not carry.
func UnmarshalSetup(src []byte) Config {
	cfg := Default()
	if len(src) < SetupWireLen {
		return cfg
	}
	cfg.Fhss.Num = int(src[0])
	cfg.Fhss.Seed = binary.LittleEndian.Uint32(src[1:5])
	cfg.Frame.SyncWord = binary.LittleEndian.Uint16(src[5:7])
	cfg.Frame.RateMs = uint32(src[7])
	cfg.Link.LQAveragingPeriod = int(src[8])
	cfg.Link.ConnectTmoSysticks = uint32(binary.LittleEndian.Uint16(src[9:11]))
	cfg.Link.ConnectSyncCnt = src[11]
	if serialDestinationFromByte(src[12]) == serial.DestinationBridge {
		cfg.Tx.ChannelsSource = "bridge"
	} else {
		cfg.Tx.ChannelsSource = "inport"
	}
	switch channelOrderFromByte(src[13]) {
	case channels.ETAR:
		cfg.Tx.ChannelOrder = "etar"
	case channels.TAER:
		cfg.Tx.ChannelOrder = "taer"
	default:
		cfg.Tx.ChannelOrder = "aetr"
	}
	if src[14] == 1 {
		cfg.Tx.SerialLinkMode = "mavlink"
	} else {
		cfg.Tx.SerialLinkMode = "raw"
	}
	flags := src[15]
	cfg.Antenna.UseAntenna1 = flags&(1<<0) != 0
	cfg.Antenna.UseAntenna2 = flags&(1<<1) != 0
	cfg.Antenna.TimeoutAbortsBoth = flags&(1<<2) != 0
	return cfg
}
