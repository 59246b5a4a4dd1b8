package main

import "github.com/operandhq/lpr/cmd"

func main() {
	cmd.Execute()
}
