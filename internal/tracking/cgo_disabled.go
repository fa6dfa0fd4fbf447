//go:build !cgo

package tracking

func cgoEnabled() bool { return false }
