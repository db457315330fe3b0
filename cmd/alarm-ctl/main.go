package main

import "github.com/oshokin/alarm-monitor/cmd/alarm-ctl/cmd"

func main() {
	cmd.Execute()
}
