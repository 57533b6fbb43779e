package main

import "github.com/khanhnv2901/vulnpack-cli/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
