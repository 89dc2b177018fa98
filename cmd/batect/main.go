package main

import "github.com/oshokin/batect-launcher/cmd/batect/cmd"

func main() {
	cmd.Execute()
}
