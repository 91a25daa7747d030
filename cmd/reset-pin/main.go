package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go-retail-ledger/internal/config"
	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/database"

	"github.com/google/uuid"
)

// reset-pin replaces a supervisor PIN with a bcrypt hash. It is also the way to migrate
// a legacy plain-text PIN without waiting for the user to log in.
func main() {
	tenantFlag := flag.String("tenant", os.Getenv("RESET_TENANT_ID"), "tenant id")
	email := flag.String("email", os.Getenv("RESET_EMAIL"), "user email")
	pin := flag.String("pin", os.Getenv("RESET_PIN"), "new supervisor PIN (4-8 digits)")
	flag.Parse()

	// 1. Validate input
	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil {
		log.Fatalf("❌ Invalid tenant id %q: %v", *tenantFlag, err)
	}
	if *email == "" {
		log.Fatal("❌ -email is required")
	}
	if !validPIN(*pin) {
		log.Fatal("❌ -pin must be 4 to 8 digits")
	}

	// 2. Setup Database
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect database: %v", err)
	}

	user, legacy, err := resetPIN(context.Background(), repository.NewUserRepo(db), tenantID, *email, *pin)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	log.Printf("✅ Success! Supervisor PIN for %s has been reset", user.Email)
	if legacy {
		log.Println("Previous PIN was stored in plain text and is now hashed")
	}
}

// resetPIN stores pin as the user's new supervisor PIN. It reports whether the PIN being
// replaced was a legacy plain-text one.
func resetPIN(ctx context.Context, userRepo repository.UserRepository, tenantID uuid.UUID, email, pin string) (*model.User, bool, error) {
	// 3. Find user
	user, err := userRepo.FindByEmail(ctx, tenantID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, false, fmt.Errorf("user %s not found in tenant %s: %w", email, tenantID, err)
	}
	if !user.Role.IsPrivileged() {
		log.Printf("Warning: %s is %s and cannot approve operations", user.Email, user.Role)
	}
	legacy := user.HasLegacyPIN()

	// 4. Hash new PIN
	if err := user.SetPIN(pin); err != nil {
		return nil, false, fmt.Errorf("hash PIN: %w", err)
	}

	// 5. Update
	if err := userRepo.UpdatePIN(ctx, tenantID, user.ID, user.SupervisorPIN); err != nil {
		return nil, false, fmt.Errorf("update PIN: %w", err)
	}
	return user, legacy, nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
