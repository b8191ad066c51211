package main

import "github.com/Manu343726/kamek/cmd"

func main() {
	cmd.Execute()
}
