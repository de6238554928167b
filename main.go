package main

import "github.com/openhydrogen/hydrogen/cmd"

func main() {
	cmd.Execute()
}
