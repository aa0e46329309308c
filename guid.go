package exfat

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Guid is a version-1 (time + node based) GUID, matching the layout the
// volume-GUID directory entry stores: a 60-bit timestamp since
// 1582-10-15, a version nibble, a 14-bit clock sequence, and a 48-bit node
// id derived from a MAC address.
type Guid struct {
	Time          Time
	ClockSequence uint16
	Node          net.HardwareAddr
	Version       uint8
}

// NewGuid builds a fresh version-1 GUID using the local MAC address, the
// current time, and a random clock sequence.
func NewGuid() (Guid, error) {
	node, err := LocalMacAddress()
	if err != nil {
		return Guid{}, err
	}

	var seqBuf [2]byte
	if _, err := rand.Read(seqBuf[:]); err != nil {
		return Guid{}, err
	}

	return Guid{
		Time:          NewTime(time.Now()),
		ClockSequence: binary.LittleEndian.Uint16(seqBuf[:]) & 0x3FFF,
		Node:          node,
		Version:       1,
	}, nil
}

// NullGuid is the all-zero sentinel GUID used when no volume GUID is
// requested.
func NullGuid() Guid {
	return Guid{
		Time:          FromGuidTimestamp(0),
		ClockSequence: 0,
		Node:          make(net.HardwareAddr, 6),
		Version:       0,
	}
}

// ReadGuid decodes a 128-bit GUID (as stored little-endian in a directory
// entry or OEM parameter slot) back into its components.
func ReadGuid(raw [16]byte) Guid {
	low := binary.LittleEndian.Uint64(raw[0:8])
	high := binary.LittleEndian.Uint64(raw[8:16])

	timeAndVersion := low
	timestamp := timeAndVersion & 0x0FFFFFFFFFFFFFFF
	version := uint8(timeAndVersion >> 60)

	clockSequence := uint16(high)
	node := make(net.HardwareAddr, 6)
	nodeValue := high >> 16

	for i := 5; i >= 0; i-- {
		node[i] = byte(nodeValue)
		nodeValue >>= 8
	}

	return Guid{
		Time:          FromGuidTimestamp(timestamp),
		ClockSequence: clockSequence,
		Node:          node,
		Version:       version,
	}
}

// Bytes packs the GUID into its 16-byte little-endian on-disk
// representation.
func (g Guid) Bytes() [16]byte {
	timestamp := g.Time.GuidTimestamp() & 0x0FFFFFFFFFFFFFFF
	low := timestamp | (uint64(g.Version) << 60)
	high := uint64(g.ClockSequence) | (macAddressToUint64(g.Node) << 16)

	var raw [16]byte
	binary.LittleEndian.PutUint64(raw[0:8], low)
	binary.LittleEndian.PutUint64(raw[8:16], high)

	return raw
}

func (g Guid) String() string {
	raw := g.Bytes()

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.LittleEndian.Uint32(raw[0:4]),
		binary.LittleEndian.Uint16(raw[4:6]),
		binary.LittleEndian.Uint16(raw[6:8]),
		uint16(raw[8])<<8|uint16(raw[9]),
		raw[10:16])
}
