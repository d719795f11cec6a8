package main

import "scrapp.io/client/internal/cli"

func main() {
	cli.Execute()
}
