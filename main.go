package main

import "github.com/shivensaigal/QueueCtl/cmd"

func main() {
	cmd.Execute()
}
