//go:build !cgo

package paste

func platformKeystroker() Keystroker {
	return KeystrokeFunc(func() error { return ErrKeystrokeUnsupported })
}
