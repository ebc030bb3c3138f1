package main

import "github.com/beamlink/beamlink/internal/cli"

func main() {
	cli.Execute()
}
