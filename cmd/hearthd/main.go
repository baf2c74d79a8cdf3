package main

import "github.com/hearthai/hearth/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
