//go:build !unix

package watch

import "os"

var signalCommands = map[os.Signal]string{
	os.Interrupt: "stop",
}

var commandSignals = map[string]os.Signal{
	"stop": os.Kill,
}
