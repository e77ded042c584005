package main

import (
	"os"

	"github.com/francisoliverlee/rocketmq-mcp/internal/app"
)

func main() {
	os.Exit(app.Main(os.Args))
}
