package main

import "github.com/ValentinKolb/dPS/cmd"

func main() {
	cmd.Execute()
}
