//go:build !linux

package trash

import (
	"errors"
	"strings"
	"syscall"
)

func renameNoReplace(src, dst string) error {
	return renameChecked(src, dst)
}

// isCrossDeviceError detecta si el error es "invalid cross-device link"
func isCrossDeviceError(err error) bool {
	return errors.Is(err, syscall.EXDEV) || strings.Contains(err.Error(), "cross-device")
}
