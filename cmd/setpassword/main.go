// Command setpassword gives an account a password so it can sign in without Google.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/careerhub/backend/repository"
	"github.com/careerhub/backend/services"
	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const minPasswordLength = 8

func main() {
	email := pflag.String("email", "", "account email")
	password := pflag.String("password", "", "new password")
	pflag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	*email = strings.TrimSpace(strings.ToLower(*email))
	if *email == "" || len(*password) < minPasswordLength {
		fmt.Fprintf(os.Stderr, "usage: setpassword --email <email> --password <at least %d chars>\n", minPasswordLength)
		os.Exit(2)
	}

	cfg := services.LoadConfig()
	if cfg.Database.URL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	repo := repository.NewGORMRepository(db)

	ctx := context.Background()
	user, err := repo.GetUserByEmail(ctx, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to look up user: %v\n", err)
		os.Exit(1)
	}
	if user == nil {
		fmt.Fprintf(os.Stderr, "no user with email %s\n", *email)
		os.Exit(1)
	}

	hashed, err := services.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	user.Password = hashed
	if err := repo.UpdateUser(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Password updated for %s\n", user.Email)
}
