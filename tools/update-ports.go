package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
)

// services exposed by network printers
var printerServices = map[string]bool{
	"printer":        true,
	"ipp":            true,
	"pdl-datastream": true,
}

func main() {

	resp, err := http.Get("https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	output, err := os.Create("./scan/known.go")
	if err != nil {
		panic(err)
	}
	defer output.Close()

	output.Write([]byte(`package scan

// data from https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv
var knownPorts = map[int]string{`))

	seen := map[string]bool{}
	reader := csv.NewReader(resp.Body)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}

		if len(record) < 3 || record[2] != "tcp" || record[0] == "" || record[1] == "" || seen[record[1]] {
			continue
		}

		if !printerServices[record[0]] {
			continue
		}

		seen[record[1]] = true
		output.Write([]byte(fmt.Sprintf(`
	%s: "%s",`, record[1], record[0])))

	}

	output.Write([]byte(`
}
`))
}
