package main

import "github.com/runtimeterrors/aegisec/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
