package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: makeadmin <email>")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	dbService, err := database.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbService.Close()

	userService := service.NewUserService(repository.NewUserRepository(dbService.DB()), cfg.JWT.Secret, cfg.JWT.Expiry)

	user, err := userService.PromoteToAdmin(ctx, os.Args[1])
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			log.Error("User not found, register first", zap.String("email", os.Args[1]))
		} else {
			log.Error("Failed to promote user", zap.Error(err))
		}
		dbService.Close()
		os.Exit(1)
	}

	log.Info("User promoted", zap.String("email", user.Email), zap.String("role", user.Role))
}
