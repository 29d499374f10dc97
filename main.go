package main

import "github.com/Log-Tools/trace-backfill/cmd"

func main() {
	cmd.Execute()
}
