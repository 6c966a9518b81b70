package main

import "printerlink/cmd"

func main() {
	cmd.Execute()
}
