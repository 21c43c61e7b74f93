//go:build unix

package watch

import (
	"os"

	"golang.org/x/sys/unix"
)

var signalCommands = map[os.Signal]string{
	unix.SIGHUP:  "reload",
	unix.SIGUSR1: "pause",
	unix.SIGUSR2: "resume",
	unix.SIGINT:  "stop",
	unix.SIGTERM: "stop",
}

var commandSignals = map[string]os.Signal{
	"reload": unix.SIGHUP,
	"pause":  unix.SIGUSR1,
	"resume": unix.SIGUSR2,
	"stop":   unix.SIGTERM,
}
