package main

import (
	"os"

	chatrelaycmder "github.com/papercomputeco/chatrelay/cmd/chatrelay"
)

func main() {
	cmd := chatrelaycmder.NewChatRelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
