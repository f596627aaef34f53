package main

import "github.com/scanserver/scanner-client/pkg/cli"

func main() {
	cli.RunRootCommand()
}
