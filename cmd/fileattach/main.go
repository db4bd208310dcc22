// Точка входа fileattach — сервис вложений: загрузка файлов в объектное хранилище,
// метаданные в PostgreSQL, доступ только владельцу по bearer-токену.
//
// Команды:
//
//	fileattach serve         — HTTP-сервер (по умолчанию)
//	fileattach migrate up    — применить миграции БД
//	fileattach migrate down  — откатить одну миграцию
//	fileattach version       — версия сборки
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fileattach завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
