package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/finchat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "finchat:", err)
		os.Exit(1)
	}
}
