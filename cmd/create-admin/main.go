// Command create-admin adds an admin account. Without -username it
// generates unique credentials and prints them once.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"gorm.io/gorm"

	"Fixer-backend/internal/config"
	"Fixer-backend/internal/database"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/utilities"
)

// generateRandomString creates a random hex string of length 2n
func generateRandomString(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal(err)
	}
	return hex.EncodeToString(bytes)
}

// generateUniqueUsername tries until a unique username is found
func generateUniqueUsername(db *gorm.DB) (string, error) {
	for {
		username := "admin_" + generateRandomString(4)
		var count int64
		if err := db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return username, nil
		}
	}
}

func main() {
	username := flag.String("username", "", "admin username, generated when empty")
	password := flag.String("password", "", "admin password, generated when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewDBInstance(cfg.Database, logger.NewNoOpLogger())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if *username == "" {
		if *username, err = generateUniqueUsername(db.DB); err != nil {
			log.Fatalf("failed to generate username: %v", err)
		}
	}
	if *password == "" {
		*password = generateRandomString(8)
	}

	if err := utilities.CreateAdmin(*password, *username, db.DB); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Admin credentials generated successfully!")
	fmt.Println("======================================")
	fmt.Printf("Username: %s\n", *username)
	fmt.Printf("Password: %s\n", *password)
	fmt.Println("======================================")
}
