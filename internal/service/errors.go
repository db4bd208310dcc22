// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — файл не найден или принадлежит другому владельцу.
	ErrNotFound = errors.New("файл не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnauthenticated — операция вызвана без владельца.
	ErrUnauthenticated = errors.New("пользователь не аутентифицирован")
)

// DependencyError — сбой внешней зависимости (хранилище, БД).
// Op — операция, на которой произошёл сбой.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func dependencyError(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}
