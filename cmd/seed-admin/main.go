// seed-admin creates or updates the admin user with every permission flag set
// and prints a bearer token for it. Idempotent: rerunning refreshes the
// password and flags.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "assetsAdmin"
	adminFullName = "Assets Admin"
)

func main() {
	passwordFlag := flag.String("password", "", "admin password (overrides ADMIN_PASSWORD)")
	flag.Parse()

	password := strings.TrimSpace(*passwordFlag)
	if password == "" {
		password = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "set ADMIN_PASSWORD or pass -password")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var user models.User
	err = db.WithContext(ctx).Where("username = ?", adminUsername).First(&user).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		user = models.User{
			Username:             adminUsername,
			FullName:             adminFullName,
			PasswordHash:         string(hashed),
			Role:                 "Admin",
			IsActive:             utils.NewTrue(),
			CanReadAsset:         true,
			CanEditAsset:         true,
			CanDeleteAsset:       true,
			CanMakeTransaction:   true,
			CanDeleteTransaction: true,
			CanMakeReport:        true,
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q id=%d\n", adminUsername, user.ID)
	case err != nil:
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	default:
		if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"password_hash":          string(hashed),
			"full_name":              adminFullName,
			"role":                   "Admin",
			"is_active":              true,
			"can_read_asset":         true,
			"can_edit_asset":         true,
			"can_delete_asset":       true,
			"can_make_transaction":   true,
			"can_delete_transaction": true,
			"can_make_report":        true,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		// Drop the cached copy so permission checks see the new flags.
		_ = user.RemoveInstanceRedis()
		fmt.Printf("Updated admin user: username=%q id=%d\n", adminUsername, user.ID)
	}

	token, err := utils.JwtGenerate(user.ID, "Admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Bearer token:\n%s\n", token)
}
