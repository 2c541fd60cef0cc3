package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/utils"
)

// Утилита для выдачи долгоживущего токена диспетчера.
// Использование: go run cmd/generate_tracking_token/main.go
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	token, err := utils.GenerateDispatcherJWT()
	if err != nil {
		log.Fatal("Ошибка генерации токена:", err)
	}

	fmt.Println(token)
}
