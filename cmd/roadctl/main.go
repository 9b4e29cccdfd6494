// AngelaMos | 2026
// main.go

package main

import (
	"os"

	"github.com/carterperez-dev/roadwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
