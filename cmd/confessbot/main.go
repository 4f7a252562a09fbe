package main

import (
	"fmt"
	"os"

	"github.com/small-frappuccino/confessbot/pkg/app"
)

func main() {
	if err := app.Run("confessbot", "CONFESSBOT_TOKEN"); err != nil {
		fmt.Fprintf(os.Stderr, "confessbot: %v\n", err)
		os.Exit(1)
	}
}
