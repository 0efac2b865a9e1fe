package resolve

import (
	"bytes"
	"net"
	"sort"

	"github.com/google/gopacket/macs"
	"github.com/mostlygeek/arp"
	"github.com/sirupsen/logrus"
)

const incompleteMAC = "00:00:00:00:00:00"

// Neighbor is one entry of the neighbor cache.
type Neighbor struct {
	IP           string
	MAC          net.HardwareAddr
	Manufacturer string
	// Name is filled in by Resolver.NameNeighbors.
	Name         string
}

// NeighborCache is a read-only view of the OS neighbor table.
type NeighborCache interface {
	Neighbors() ([]Neighbor, error)
}

// ARPCache reads the system ARP table. On Linux this is /proc/net/arp.
type ARPCache struct {
	table func() arp.ArpTable
}

func NewARPCache() *ARPCache {
	return &ARPCache{
		table: arp.Table,
	}
}

// Neighbors returns complete entries sorted by IP address.
func (c *ARPCache) Neighbors() ([]Neighbor, error) {

	table := c.table()
	if table == nil {
		return nil, ErrNeighborCacheUnavailable
	}

	neighbors := []Neighbor{}
	for ip, macStr := range table {
		if macStr == incompleteMAC {
			continue
		}

		mac, err := net.ParseMAC(macStr)
		if err != nil {
			logrus.Debugf("Skipping neighbor %s with unparseable hardware address '%s'", ip, macStr)
			continue
		}

		neighbors = append(neighbors, Neighbor{
			IP:           ip,
			MAC:          mac,
			Manufacturer: Manufacturer(mac),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		a, b := net.ParseIP(neighbors[i].IP), net.ParseIP(neighbors[j].IP)
		if a == nil || b == nil {
			return neighbors[i].IP < neighbors[j].IP
		}
		return bytes.Compare(a.To16(), b.To16()) < 0
	})

	return neighbors, nil
}

// Manufacturer returns the registered vendor of the NIC, if known.
func Manufacturer(mac net.HardwareAddr) string {
	if len(mac) < 3 {
		return ""
	}

	prefix := [3]byte{
		mac[0],
		mac[1],
		mac[2],
	}

	return macs.ValidMACPrefixMap[prefix]
}
