// Command admin manages roles and bans for existing Echo accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"echo/internal/config"
	"echo/internal/database"
	"echo/internal/middleware"
	"echo/internal/models"
	"echo/internal/repository"

	"gorm.io/gorm"
)

const usage = `Usage:
  admin promote <username>   - Grant the admin role
  admin demote <username>    - Revoke the admin role
  admin ban <username>       - Block the account from signing in
  admin unban <username>     - Lift a ban
  admin list-admins          - List all admins`

var errUsage = errors.New(usage)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	if err := run(context.Background(), db, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *gorm.DB, out io.Writer, args []string) error {
	a := &admin{db: db, users: repository.NewUserRepository(db), out: out}

	switch args[0] {
	case "list-admins":
		return a.listAdmins(ctx)
	case "promote", "demote", "ban", "unban":
		if len(args) < 2 {
			return errUsage
		}
		user, err := a.lookup(ctx, args[1])
		if err != nil {
			return err
		}
		switch args[0] {
		case "promote":
			return a.promote(ctx, user)
		case "demote":
			return a.demote(ctx, user)
		case "ban":
			return a.setBanned(ctx, user, true)
		default:
			return a.setBanned(ctx, user, false)
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

type admin struct {
	db    *gorm.DB
	users repository.UserRepository
	out   io.Writer
}

func (a *admin) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q not found", username)
	}
	return user, nil
}

func (a *admin) promote(ctx context.Context, user *models.User) error {
	isAdmin, err := a.users.HasRole(ctx, user.ID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if isAdmin {
		fmt.Fprintf(a.out, "%s is already an admin\n", user.Username)
		return nil
	}

	ok, err := a.users.AssignRole(ctx, user.ID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %q is missing; run migrations first", models.RoleAdmin)
	}
	fmt.Fprintf(a.out, "promoted %s to admin\n", user.Username)
	return nil
}

func (a *admin) demote(ctx context.Context, user *models.User) error {
	res := a.db.WithContext(ctx).
		Where("user_id = ? AND role_id IN (?)", user.ID,
			a.db.Model(&models.Role{}).Select("id").Where("name = ?", models.RoleAdmin)).
		Delete(&models.UserRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		fmt.Fprintf(a.out, "%s is not an admin\n", user.Username)
		return nil
	}
	fmt.Fprintf(a.out, "demoted %s from admin\n", user.Username)
	return nil
}

func (a *admin) setBanned(ctx context.Context, user *models.User, banned bool) error {
	if user.IsBanned == banned {
		fmt.Fprintf(a.out, "%s: banned=%t (unchanged)\n", user.Username, banned)
		return nil
	}
	err := a.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_banned", banned).Error
	if err != nil {
		return err
	}
	middleware.Logger.WarnContext(ctx, "ban state changed",
		slog.String("username", user.Username), slog.Bool("banned", banned))
	fmt.Fprintf(a.out, "%s: banned=%t\n", user.Username, banned)
	return nil
}

func (a *admin) listAdmins(ctx context.Context) error {
	var admins []models.User
	err := a.db.WithContext(ctx).
		Table("users AS u").
		Select("u.*").
		Joins("JOIN user_roles ur ON ur.user_id = u.id").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("r.name = ?", models.RoleAdmin).
		Order("u.username").
		Find(&admins).Error
	if err != nil {
		return err
	}

	if len(admins) == 0 {
		fmt.Fprintln(a.out, "no admins found")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tSTATUS")
	for _, u := range admins {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.Email, u.Status)
	}
	return w.Flush()
}
