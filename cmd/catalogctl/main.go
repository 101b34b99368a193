package main

import "github.com/namimod25/toko-online/internal/cli"

func main() {
	cli.Main()
}
