package main

import "github.com/Adithya-Monish-Kumar-K/lexisearch/internal/cli"

func main() {
	cli.Execute()
}
