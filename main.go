package main

import "gatewarden/internal/cli"

func main() {
	cli.Execute()
}
