package main

import "patientledger/cli/cmd"

func main() {
	cmd.Execute()
}
