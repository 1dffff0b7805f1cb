package main

import (
	"github.com/kunay1/seal/cmd/cli"
)

// main is the entry point for the seal-admin command-line tool.
// main 是 seal-admin 命令行工具的入口点。
func main() {
	cli.Execute()
}
