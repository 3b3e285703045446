// Command gifcheck reports the readiness of every stage of a saved blend
// pipeline without running any encoder.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
)

func main() {
	cmd := newRootCommand(notify.SystemClipboard{})
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errBlocked) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
