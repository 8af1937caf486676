package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rmaulana/iam-service/internal/user"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long:  `List, create and remove users, and assign access profiles to them.`,
}

var (
	usersListPage    int
	usersListLimit   int
	userSuperadmin   bool
	userHidden       bool
	userStripProfile bool
)

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		page, err := deps.userService.ListUsers(context.Background(), usersListPage, usersListLimit)
		if err != nil {
			reportError(err)
			return
		}

		rows := make([][]string, 0, len(page.Users))
		for _, u := range page.Users {
			lastAccess := "-"
			if u.LastAccessAt != nil {
				lastAccess = u.LastAccessAt.Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{
				u.UserKey,
				u.Email,
				u.FullName(),
				fmt.Sprintf("%t", u.IsActive),
				fmt.Sprintf("%t", u.IsSuperadmin),
				lastAccess,
			})
		}
		fmt.Print(renderTable(
			[]string{"KEY", "EMAIL", "NAME", "ACTIVE", "SUPERADMIN", "LAST ACCESS"},
			rows,
		))
		fmt.Printf("page %d of %d users\n", page.Page, page.Total)
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user interactively",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		reader := bufio.NewReader(os.Stdin)
		email := promptLine(reader, "Email")
		firstName := promptLine(reader, "First name")
		lastName := promptLine(reader, "Last name")
		password, err := promptNewPassword()
		if err != nil {
			reportError(err)
			return
		}

		created, err := deps.userService.CreateUser(context.Background(), user.CreateUserDTO{
			Email:          email,
			Password:       password,
			FirstName:      firstName,
			LastName:       lastName,
			IsSuperadmin:   userSuperadmin,
			IsHidden:       userHidden,
			SessionExpires: true,
		})
		if err != nil {
			reportError(err)
			return
		}
		reportOK("created user " + created.UserKey)
	},
}

var usersGenerateSuperadminCmd = &cobra.Command{
	Use:   "generate-superadmin",
	Short: "Provision the hidden superadmin account",
	Long:  `Creates a hidden superadmin with a never-expiring session and prints the generated password once.`,
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		reader := bufio.NewReader(os.Stdin)
		email := promptLine(reader, "Superadmin email")
		password := uuid.NewString()

		created, err := deps.userService.CreateSuperadmin(context.Background(), email, password)
		if err != nil {
			reportError(err)
			return
		}
		reportOK("created superadmin " + created.UserKey)
		fmt.Println("generated password (store it now, it is not shown again):", password)
	},
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove [user-key]",
	Short: "Remove a user and all profile assignments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		reader := bufio.NewReader(os.Stdin)
		if !promptYesNo(reader, "Remove user "+args[0]+" and its profile assignments?") {
			fmt.Println("aborted")
			return
		}

		if err := deps.userService.RemoveUser(context.Background(), args[0]); err != nil {
			reportError(err)
			return
		}
		reportOK("removed user " + args[0])
	},
}

var usersSetProfilesCmd = &cobra.Command{
	Use:   "set-profiles [user-key] [profile-keys]",
	Short: "Replace a user's access profile assignments",
	Long: `Replaces the user's profile assignments with the given comma-separated
profile keys. With --remove the user is stripped of all assignments.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		var profileKeys []string
		if !userStripProfile {
			if len(args) < 2 {
				reportError(fmt.Errorf("profile keys are required unless --remove is set"))
				return
			}
			for _, key := range strings.Split(args[1], ",") {
				if key = strings.TrimSpace(key); key != "" {
					profileKeys = append(profileKeys, key)
				}
			}
		}

		if err := deps.userService.SetProfiles(context.Background(), args[0], profileKeys); err != nil {
			reportError(err)
			return
		}
		if userStripProfile {
			reportOK("removed all profile assignments from " + args[0])
			return
		}
		reportOK(fmt.Sprintf("assigned %d profile(s) to %s", len(profileKeys), args[0]))
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersListPage, "page", 1, "Page number")
	usersListCmd.Flags().IntVar(&usersListLimit, "limit", 20, "Users per page")
	usersCreateCmd.Flags().BoolVar(&userSuperadmin, "superadmin", false, "Grant superadmin rights")
	usersCreateCmd.Flags().BoolVar(&userHidden, "hidden", false, "Hide the user from listings")
	usersSetProfilesCmd.Flags().BoolVar(&userStripProfile, "remove", false, "Remove all profile assignments")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersGenerateSuperadminCmd)
	usersCmd.AddCommand(usersRemoveCmd)
	usersCmd.AddCommand(usersSetProfilesCmd)
}
