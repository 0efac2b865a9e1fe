package main

import "github.com/liamg/printfind/cmd"

func main() {
	cmd.Execute()
}
