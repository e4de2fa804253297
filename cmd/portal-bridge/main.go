package main

import (
	"context"

	"portalbridge/cmd/portal-bridge/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
