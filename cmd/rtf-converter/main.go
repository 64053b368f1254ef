// main.go — точка входа rtf-converter.
// Команды: serve (по умолчанию) — HTTP-сервер, migrate — только миграции БД.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
