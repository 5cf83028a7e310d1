package main

import "github.com/MeKo-Tech/gridmap/internal/cmd"

func main() {
	cmd.Execute()
}
