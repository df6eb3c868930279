package main

import "github.com/khaledhikmat/fr-attendance/cmd"

func main() {
	cmd.Execute()
}
