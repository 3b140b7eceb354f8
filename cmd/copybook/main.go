// File path: cmd/copybook/main.go
package main

import (
	"os"

	"github.com/nicodishanthj/Katral_copybook/cmd/copybook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
