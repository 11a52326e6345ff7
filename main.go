package main

import "github.com/kozaktomas/class-track/cmd"

func main() {
	cmd.Execute()
}
