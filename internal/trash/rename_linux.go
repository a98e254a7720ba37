//go:build linux

package trash

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace usa RENAME_NOREPLACE: el kernel rechaza el destino
// existente con EEXIST. Si el sistema de archivos no lo soporta se cae a
// Lstat + Rename (protegido por el lock del destino).
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.ENOTSUP) {
		return renameChecked(src, dst)
	}
	return &os.LinkError{Op: "renameat2", Old: src, New: dst, Err: err}
}

func isCrossDeviceError(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
