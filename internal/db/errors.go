package db

import "errors"

var (
	ErrNilDB        = errors.New("la base de datos no está abierta")
	ErrEmptyPath    = errors.New("ruta vacía")
	ErrCorruptEntry = errors.New("entrada de fingerprint corrupta")
)
