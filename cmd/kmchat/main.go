package main

import "github.com/kmchat/kmchat/internal/cli"

func main() {
	cli.Execute()
}
