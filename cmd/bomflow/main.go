package main

import "bomflow/cmd/cli"

func main() {
	cli.Execute()
}
