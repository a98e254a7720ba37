package trash

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// moveCrossDevice copia y borra (para mover entre particiones).
// Si algo falla el origen queda intacto y el destino parcial se elimina.
func moveCrossDevice(src, dst string) (err error) {
	input, err := os.Open(src)
	if err != nil {
		return err
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return err
	}

	// O_EXCL: la creación es la comprobación de colisión
	output, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &CollisionError{Destination: dst}
		}
		return err
	}

	defer func() {
		if err != nil {
			output.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(output, input); err != nil {
		return fmt.Errorf("copiar %s: %w", src, err)
	}
	// OpenFile pasa por la umask
	if err = output.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err = output.Sync(); err != nil {
		return err
	}
	// Cerrar explícitamente para asegurar flush
	if err = output.Close(); err != nil {
		return err
	}
	if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return err
	}

	input.Close()
	if err = os.Remove(src); err != nil {
		return fmt.Errorf("borrar origen %s: %w", src, err)
	}
	return nil
}
