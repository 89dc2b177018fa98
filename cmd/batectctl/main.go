package main

import "github.com/oshokin/batect-launcher/cmd/batectctl/cmd"

func main() {
	cmd.Execute()
}
