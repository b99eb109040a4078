package main

import "github.com/yexubai/BookBrain/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
