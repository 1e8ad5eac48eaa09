package main

import "github.com/shaharia-lab/emitter/cmd"

func main() {
	cmd.Execute()
}
