// Command pedald converts evdev button events into shell-command
// executions according to a declarative pattern-file config.
package main

import (
	"github.com/larsks/pedald/internal/cli"
	"github.com/larsks/pedald/internal/daemon"
	"github.com/larsks/pedald/internal/daemonconfig"
)

func main() {
	cli.StandardMain(
		func() cli.Configurable { return &daemonconfig.Config{} },
		daemon.NewHandler(nil),
	)
}
