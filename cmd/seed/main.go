package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Baaaki/agora/internal/config"
	"github.com/Baaaki/agora/internal/database"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/utils"
)

func main() {
	cfg := config.Load()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		log.Fatal("Missing environment variables: ADMIN_USERNAME, ADMIN_EMAIL, ADMIN_PASSWORD")
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	existing, err := users.FindByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatal("Failed to look up admin:", err)
	}
	if existing != nil {
		log.Println("Super admin already exists:", existing.Username)
		log.Println("   Email:", existing.Email)
		return
	}

	passwordHash, err := utils.HashPassword(adminPassword)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	now := time.Now().UTC()
	admin := &models.User{
		Username:        adminUsername,
		Email:           adminEmail,
		DisplayName:     adminUsername,
		PasswordHash:    passwordHash,
		Role:            models.RoleSuperAdmin,
		Permissions:     models.DefaultPermissions(models.RoleSuperAdmin),
		Reputation:      models.MinReputation,
		IsActive:        true,
		IsEmailVerified: true,
		LastSeen:        now,
		LastActivity:    now,
	}

	if err := users.Create(ctx, admin); err != nil {
		log.Fatal("Failed to create super admin:", err)
	}

	log.Println("Super admin created successfully")
	log.Println("   Username:", admin.Username)
	log.Println("   Email:", admin.Email)
}
