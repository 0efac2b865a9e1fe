package scan

import "sort"

// DefaultPort is the raw printing port used by most network receipt printers.
const DefaultPort = 9100

var DefaultPorts []int

func init() {

	for port := range knownPorts {
		DefaultPorts = append(DefaultPorts, port)
	}
	sort.Ints(DefaultPorts)
}

func DescribePort(port int) string {
	if s, ok := knownPorts[port]; ok {
		return s
	}

	return ""
}
