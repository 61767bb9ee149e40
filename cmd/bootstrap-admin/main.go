// bootstrap-admin whitelists the first administrator so they can register
// through the normal flow, and can opt existing admins into notification mail.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kc-reserve/hut-api/internal/repository"
	"github.com/kc-reserve/hut-api/internal/service"
	"github.com/kc-reserve/hut-api/pkg/config"
	"github.com/kc-reserve/hut-api/pkg/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	var name string
	var enableNotifications bool
	var migrate bool

	flagSet := pflag.NewFlagSet("bootstrap-admin", pflag.ContinueOnError)
	flagSet.StringVar(&name, "name", "Initial Admin", "display name stored on the whitelist entry")
	flagSet.BoolVar(&enableNotifications, "enable-notifications", false, "opt every admin account into reservation mail")
	flagSet.BoolVar(&migrate, "migrate", false, "apply schema migrations before writing")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}
	if len(args) == 0 && !enableNotifications {
		printHelp(flagSet)
		return fmt.Errorf("an email address or --enable-notifications is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := database.Migrate(ctx, db.DB, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if len(args) == 1 {
		email := service.NormalizeEmail(args[0])
		if email == "" {
			return fmt.Errorf("email must not be empty")
		}
		inserted, err := repository.NewWhitelistRepository(db).UpsertAdmin(ctx, email, name)
		if err != nil {
			return err
		}
		if inserted {
			fmt.Printf("whitelisted %s as admin; register through the app to finish setup\n", email)
		} else {
			fmt.Printf("%s was already whitelisted; admin default enabled\n", email)
		}
	}

	if enableNotifications {
		n, err := repository.NewUserRepository(db).EnableAdminNotifications(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("enabled notifications for %d admin account(s)\n", n)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `bootstrap-admin prepares administrator access.

Usage:
  bootstrap-admin [flags] <email>
  bootstrap-admin --enable-notifications

Flags:
%s`, flagSet.FlagUsages())
}
