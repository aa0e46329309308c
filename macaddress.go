package exfat

import (
	"crypto/rand"
	"net"
)

// LocalMacAddress returns the hardware address of the first non-loopback
// network interface that has one. If none is found (containers, sandboxes),
// it returns a random locally-administered address per RFC 4122 section
// 4.5, which is the portable equivalent of the original tool's
// /sys/class/net/eth0/address read.
func LocalMacAddress() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 {
				continue
			}

			if len(iface.HardwareAddr) == 6 && !isZeroMac(iface.HardwareAddr) {
				return iface.HardwareAddr, nil
			}
		}
	}

	return randomLocalMacAddress()
}

func isZeroMac(addr net.HardwareAddr) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}

	return true
}

func randomLocalMacAddress() (net.HardwareAddr, error) {
	addr := make(net.HardwareAddr, 6)
	if _, err := rand.Read(addr); err != nil {
		return nil, err
	}

	// Set the locally-administered and unicast bits.
	addr[0] = (addr[0] | 0x02) & 0xFE

	return addr, nil
}

// macAddressToUint64 packs a 6-byte hardware address into the low 48 bits
// of a uint64, matching the GUID node-id field's layout.
func macAddressToUint64(addr net.HardwareAddr) uint64 {
	var v uint64
	for _, b := range addr {
		v = (v << 8) | uint64(b)
	}

	return v
}
