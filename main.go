package main

import "github.com/kozaktomas/photo-library/cmd"

func main() {
	cmd.Execute()
}
