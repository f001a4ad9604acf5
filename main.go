package main

import (
	"kgicweb/cmd"
)

func main() {
	cmd.Execute()
}
