package main

import "github.com/Davincible/gemini-gateway/cmd"

func main() {
	cmd.Execute()
}
