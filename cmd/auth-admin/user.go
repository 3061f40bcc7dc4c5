package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/pkg/crypto"
	"github.com/Bugian/Sign-up-Log-in-page/internal/service"
)

// generatedPasswordLength satisfies the default password policy.
const generatedPasswordLength = 16

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserShowCmd())
	cmd.AddCommand(newUserDeleteCmd())
	cmd.AddCommand(newUserFlagCmd("enable", "Allow an account to authenticate",
		func(ctx context.Context, s *service.UserService, id int64) (*domain.User, error) {
			return s.SetEnabled(ctx, id, true)
		}))
	cmd.AddCommand(newUserFlagCmd("disable", "Prevent an account from authenticating",
		func(ctx context.Context, s *service.UserService, id int64) (*domain.User, error) {
			return s.SetEnabled(ctx, id, false)
		}))
	cmd.AddCommand(newUserFlagCmd("lock", "Lock an account",
		func(ctx context.Context, s *service.UserService, id int64) (*domain.User, error) {
			return s.SetLocked(ctx, id, true)
		}))
	cmd.AddCommand(newUserFlagCmd("unlock", "Unlock an account",
		func(ctx context.Context, s *service.UserService, id int64) (*domain.User, error) {
			return s.SetLocked(ctx, id, false)
		}))
	cmd.AddCommand(newUserFlagCmd("expire-credentials", "Force a password change before the next login",
		func(ctx context.Context, s *service.UserService, id int64) (*domain.User, error) {
			return s.ExpireCredentials(ctx, id)
		}))
	cmd.AddCommand(newUserRoleCmd("add-role", "Grant a role to an account",
		func(ctx context.Context, s *service.UserService, id int64, role string) (*domain.User, error) {
			return s.AddRole(ctx, id, role)
		}))
	cmd.AddCommand(newUserRoleCmd("remove-role", "Revoke a role from an account",
		func(ctx context.Context, s *service.UserService, id int64, role string) (*domain.User, error) {
			return s.RemoveRole(ctx, id, role)
		}))
	cmd.AddCommand(newUserResetPasswordCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		password string
		roles    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Example: `  auth-admin user create --username ana --email ana@example.com --role admin
  auth-admin user create --username bob --email bob@example.com --password 'Secret1!'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			generated := password == ""
			if generated {
				var err error
				if password, err = crypto.GeneratePassword(generatedPasswordLength); err != nil {
					return err
				}
			}

			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := s.CreateUser(ctx, service.CreateUserInput{
					Username: username,
					Email:    email,
					Password: password,
					Roles:    roles,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printUser(out, user)
				if generated {
					fmt.Fprintf(out, "Password:    %s\n", password)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (generated when empty)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant (repeatable, defaults to user)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				result, err := s.List(ctx, service.ListUsersInput{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLES\tSTATUS")
				for _, u := range result.Users {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						u.ID, u.Username, u.Email, strings.Join(u.Roles.Names(), ","), status(u))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d users\n", len(result.Users), result.TotalCount)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", service.DefaultListLimit, "maximum number of users")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip")

	return cmd
}

func newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|username>",
		Short: "Show a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := findUser(ctx, s, args[0])
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
}

func newUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|username>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := findUser(ctx, s, args[0])
				if err != nil {
					return err
				}
				if err := s.Delete(ctx, user.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s (%d)\n", user.Username, user.ID)
				return nil
			})
		},
	}
}

func newUserFlagCmd(use, short string, apply func(context.Context, *service.UserService, int64) (*domain.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := findUser(ctx, s, args[0])
				if err != nil {
					return err
				}
				if user, err = apply(ctx, s, user.ID); err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
}

func newUserRoleCmd(use, short string, apply func(context.Context, *service.UserService, int64, string) (*domain.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|username> <role>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := findUser(ctx, s, args[0])
				if err != nil {
					return err
				}
				if user, err = apply(ctx, s, user.ID, args[1]); err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
}

func newUserResetPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <id|username>",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			generated := password == ""
			if generated {
				var err error
				if password, err = crypto.GeneratePassword(generatedPasswordLength); err != nil {
					return err
				}
			}

			return withUserService(cmd, func(ctx context.Context, s *service.UserService) error {
				user, err := findUser(ctx, s, args[0])
				if err != nil {
					return err
				}
				if _, err := s.ResetPassword(ctx, user.ID, password); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Password reset for %s\n", user.Username)
				if generated {
					fmt.Fprintf(out, "Password: %s\n", password)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password (generated when empty)")

	return cmd
}

// withUserService opens the user service for the duration of fn.
func withUserService(cmd *cobra.Command, fn func(context.Context, *service.UserService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, closeFn, err := openUserService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(ctx, s)
}

// findUser resolves a numeric ID or a username.
func findUser(ctx context.Context, s *service.UserService, ref string) (*domain.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.GetByID(ctx, id)
	}
	return s.GetByUsername(ctx, ref)
}

func printUser(w io.Writer, u *domain.User) {
	fmt.Fprintf(w, "ID:          %d\n", u.ID)
	fmt.Fprintf(w, "Username:    %s\n", u.Username)
	fmt.Fprintf(w, "Email:       %s\n", u.Email)
	fmt.Fprintf(w, "Roles:       %s\n", strings.Join(u.Roles.Names(), ", "))
	fmt.Fprintf(w, "Status:      %s\n", status(u))
	if u.LastLoginAt != nil {
		fmt.Fprintf(w, "Last login:  %s\n", u.LastLoginAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Created:     %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
}

// status summarizes the account state flags.
func status(u *domain.User) string {
	var states []string
	if !u.Enabled {
		states = append(states, "disabled")
	}
	if !u.AccountNonLocked {
		states = append(states, "locked")
	}
	if !u.AccountNonExpired {
		states = append(states, "expired")
	}
	if !u.CredentialsNonExpired {
		states = append(states, "credentials-expired")
	}
	if len(states) == 0 {
		return "active"
	}
	return strings.Join(states, ",")
}
