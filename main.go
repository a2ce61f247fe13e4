package main

import "domus/cli"

func main() {
	cli.Execute()
}
