package main

import "github.com/oshokin/alarm-monitor/cmd/alarm-monitor/cmd"

func main() {
	cmd.Execute()
}
