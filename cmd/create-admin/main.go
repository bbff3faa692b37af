package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/postlane/postlane/domain/entity"
	"github.com/postlane/postlane/infrastructure/adapter/postgres"
	"github.com/postlane/postlane/infrastructure/config"
	"github.com/postlane/postlane/infrastructure/service/password"
)

// Bootstraps an admin account so the admin endpoints are reachable on a
// fresh install.
func main() {
	name := flag.String("name", "Administrator", "admin display name")
	email := flag.String("email", "", "admin email (required)")
	pass := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *email == "" || *pass == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost, nil)

	if valid, reasons := passwordService.CheckStrength(*pass); !valid {
		log.Fatalf("Password too weak: %s", strings.Join(reasons, "; "))
	}

	hash, err := passwordService.HashPassword(*pass)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := entity.NewUser(uuid.NewString(), *name, *email, hash)
	admin.Role = entity.RoleAdmin

	userRepo := postgres.NewUserRepositoryAdapter(db)
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	fmt.Printf("Admin user created: %s (%s)\n", admin.Email, admin.ID)
}
