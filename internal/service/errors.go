// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/rtf-converter/internal/repository"
)

var (
	// ErrNotFound — шаблон не найден, истёк или запрошена не текущая версия.
	ErrNotFound = errors.New("шаблон не найден")
	// ErrVersionConflict — шаблон изменён с момента чтения клиентом.
	ErrVersionConflict = errors.New("конфликт версий — шаблон изменён")
	// ErrStorage — сбой хранилища. Причина доступна через errors.Unwrap для логов.
	ErrStorage = errors.New("ошибка хранилища")
	// ErrCancelled — запрос отменён до записи в хранилище.
	ErrCancelled = errors.New("запрос отменён")
)

// mapRepoError переводит ошибки репозитория в ошибки сервиса.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrVersionConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
