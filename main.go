package main

import "allpairs/cli"

func main() {
	cli.Execute()
}
