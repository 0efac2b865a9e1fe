package scan

// data from https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv
var knownPorts = map[int]string{
	515:  "printer",
	631:  "ipp",
	9100: "pdl-datastream",
}
