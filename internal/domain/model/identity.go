package model

import "time"

// Identity — пользователь, подтверждённый identity-сервисом по bearer-токену.
type Identity struct {
	// ID — идентификатор пользователя, становится owner_id файлов
	ID string `json:"id"`
	// Email — адрес пользователя (если известен)
	Email string `json:"email,omitempty"`
	// Role — роль пользователя в identity-сервисе (если известна)
	Role string `json:"role,omitempty"`
	// ExpiresAt — срок действия токена (exp); нулевое значение — неизвестен
	ExpiresAt time.Time `json:"-"`
}
