package models

import "errors"

// ErrNotFound - бэкенд не знает запрошенной записи
var ErrNotFound = errors.New("not found")
