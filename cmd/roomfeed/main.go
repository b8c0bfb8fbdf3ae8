package main

import "roomfeed/internal/cmd"

func main() {
	cmd.Run()
}
