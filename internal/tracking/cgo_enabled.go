//go:build cgo

package tracking

func cgoEnabled() bool { return true }
