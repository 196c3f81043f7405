package main

import "github.com/Adithya-Monish-Kumar-K/lemma-search/internal/cli"

func main() {
	cli.Execute()
}
