package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"studyhub/internal/bootstrap"
	"studyhub/internal/crypto"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

func init() {
	CreateUserCommand.Flags().String("email", "", "email address")
	CreateUserCommand.Flags().String("name", "", "display name")
	CreateUserCommand.Flags().String("password", "", "initial password")
	CreateUserCommand.Flags().String("role", string(model.RoleStudent), "student, teacher or admin")

	UserCommand.AddCommand(&CreateUserCommand)
	UserCommand.AddCommand(&SetRoleCommand)
	UserCommand.AddCommand(&ListUsersCommand)
	RootCmd.AddCommand(&UserCommand)
}

var UserCommand = cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var CreateUserCommand = cobra.Command{
	Use:   "create",
	Short: "Create an account, typically the first admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")

		return withRepositories(cmd.Context(), func(repos *repository.Repositories) error {
			user, err := createUser(cmd.Context(), repos, email, name, password, model.Role(role))
			if err != nil {
				return err
			}
			logger.WithField("user_id", user.ID).Info("user created")
			return printJSON(cmd.OutOrStdout(), user.View())
		})
	},
}

var SetRoleCommand = cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Change the role of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepositories(cmd.Context(), func(repos *repository.Repositories) error {
			user, err := setRole(cmd.Context(), repos, args[0], model.Role(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user.View())
		})
	},
}

var ListUsersCommand = cobra.Command{
	Use:   "list",
	Short: "List accounts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepositories(cmd.Context(), func(repos *repository.Repositories) error {
			users, err := repos.Users.List(cmd.Context(), 0)
			if err != nil {
				return err
			}
			for _, user := range users {
				if err := printJSON(cmd.OutOrStdout(), user.View()); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func withRepositories(ctx context.Context, fn func(*repository.Repositories) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(repository.New(store))
}

func createUser(ctx context.Context, repos *repository.Repositories, email, name, password string, role model.Role) (model.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(name) == "" {
		return model.User{}, errors.New("--email and --name are required")
	}
	if !role.Valid() {
		return model.User{}, fmt.Errorf("unknown role %q", role)
	}
	if len(password) < 8 {
		return model.User{}, errors.New("--password must be at least 8 characters")
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	user, err := repos.Users.Create(ctx, model.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, fmt.Errorf("an account with email %s already exists", repository.NormalizeEmail(email))
	}
	return user, err
}

func setRole(ctx context.Context, repos *repository.Repositories, email string, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, fmt.Errorf("unknown role %q", role)
	}
	user, err := repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, fmt.Errorf("no account with email %s", repository.NormalizeEmail(email))
		}
		return model.User{}, err
	}
	user.Role = role
	return repos.Users.Update(ctx, user)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
