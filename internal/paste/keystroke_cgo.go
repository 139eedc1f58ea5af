//go:build cgo

package paste

import (
	"runtime"

	"github.com/go-vgo/robotgo"
)

type robotKeys struct {
	modifier string
}

func platformKeystroker() Keystroker {
	if runtime.GOOS == "darwin" {
		return robotKeys{modifier: "cmd"}
	}
	return robotKeys{modifier: "ctrl"}
}

func (k robotKeys) SendPaste() error {
	return robotgo.KeyTap("v", k.modifier)
}
