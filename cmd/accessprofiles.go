package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rmaulana/iam-service/internal/accessprofile"
	"github.com/rmaulana/iam-service/internal/permission"
)

var accessProfilesCmd = &cobra.Command{
	Use:     "accessprofiles",
	Aliases: []string{"profiles"},
	Short:   "Manage access profiles",
	Long:    `List, create and remove access profiles, and configure their module attachments and grants.`,
}

var (
	profilesListPage  int
	profilesListLimit int
)

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List access profiles",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		page, err := deps.profileService.ListProfiles(context.Background(), profilesListPage, profilesListLimit)
		if err != nil {
			reportError(err)
			return
		}

		rows := make([][]string, 0, len(page.Profiles))
		for _, p := range page.Profiles {
			rows = append(rows, []string{p.ProfileKey, p.Title, p.Tag, p.Description})
		}
		fmt.Print(renderTable([]string{"KEY", "TITLE", "TAG", "DESCRIPTION"}, rows))
		fmt.Printf("page %d of %d profiles\n", page.Page, page.Total)
	},
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an access profile interactively",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		reader := bufio.NewReader(os.Stdin)
		dto := accessprofile.CreateProfileDTO{
			Title:       promptLine(reader, "Title"),
			Description: promptLine(reader, "Description"),
			Tag:         promptLine(reader, "Tag"),
		}

		created, err := deps.profileService.CreateProfile(context.Background(), dto)
		if err != nil {
			reportError(err)
			return
		}
		reportOK("created access profile " + created.ProfileKey)
	},
}

var profilesRemoveCmd = &cobra.Command{
	Use:   "remove [profile-key]",
	Short: "Remove an access profile and all its grants",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		reader := bufio.NewReader(os.Stdin)
		if !promptYesNo(reader, "Remove profile "+args[0]+" with all attachments and grants?") {
			fmt.Println("aborted")
			return
		}

		if err := deps.profileService.RemoveProfile(context.Background(), args[0]); err != nil {
			reportError(err)
			return
		}
		reportOK("removed access profile " + args[0])
	},
}

var profilesSetModulesCmd = &cobra.Command{
	Use:   "set-modules [profile-key]",
	Short: "Configure module attachments and per-entity grants",
	Long: `Walks through every known module asking whether it should be attached to
the profile, then asks per entity which of create, read, update and delete
the profile grants.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initCLIDeps()
		if err != nil {
			reportError(err)
			return
		}
		defer deps.close()

		if err := runSetModulesWizard(deps, args[0]); err != nil {
			reportError(err)
		}
	},
}

func runSetModulesWizard(deps *cliDeps, profileKey string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	profile, err := deps.profileService.GetProfile(ctx, profileKey)
	if err != nil {
		return err
	}
	fmt.Printf("Configuring modules for %q (%s)\n\n", profile.Title, profile.ProfileKey)

	modules, err := deps.moduleService.ListModules(ctx)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		return fmt.Errorf("no modules are registered")
	}

	attached, err := deps.profileService.ProfileModules(ctx, profileKey)
	if err != nil {
		return err
	}
	attachedSet := make(map[string]bool, len(attached))
	for _, m := range attached {
		attachedSet[m.ModuleKey] = true
	}

	var selected []string
	for _, module := range modules {
		label := fmt.Sprintf("Attach module %q (%s)", module.Title, module.ModuleKey)
		if attachedSet[module.ModuleKey] {
			label += " (currently attached)"
		}
		if promptYesNo(reader, label) {
			selected = append(selected, module.ModuleKey)
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("at least one module must stay attached; nothing changed")
	}

	if err := deps.permService.SetProfileModules(ctx, profileKey, selected); err != nil {
		return err
	}

	// Re-read so newly attached modules show their zero-grant rows with keys.
	current, err := deps.permService.PermissionsByModule(ctx, profileKey)
	if err != nil {
		return err
	}

	var updates []permission.EntityPermissionUpdate
	for _, module := range current.Modules {
		fmt.Printf("\nGrants for module %q:\n", module.Title)
		for _, entity := range module.Entities {
			if entity.PermissionKey == "" {
				continue
			}
			fmt.Printf("  entity %q (currently %s)\n", entity.Label, describeBits(entity.Bits))
			bits := permission.CRUDSet{
				Create: promptYesNo(reader, "    allow create"),
				Read:   promptYesNo(reader, "    allow read"),
				Update: promptYesNo(reader, "    allow update"),
				Delete: promptYesNo(reader, "    allow delete"),
			}
			updates = append(updates, permission.EntityPermissionUpdate{
				PermissionKey: entity.PermissionKey,
				Bits:          bits,
			})
		}
	}

	if len(updates) > 0 {
		if err := deps.permService.ApplyProfilePermissions(ctx, profileKey, updates, nil); err != nil {
			return err
		}
	}

	reportOK(fmt.Sprintf("profile %s now has %d module(s) attached", profileKey, len(selected)))
	return nil
}

func describeBits(bits permission.CRUDSet) string {
	if bits.IsZero() {
		return "no grants"
	}
	return bits.String()
}

func init() {
	profilesListCmd.Flags().IntVar(&profilesListPage, "page", 1, "Page number")
	profilesListCmd.Flags().IntVar(&profilesListLimit, "limit", 20, "Profiles per page")

	accessProfilesCmd.AddCommand(profilesListCmd)
	accessProfilesCmd.AddCommand(profilesCreateCmd)
	accessProfilesCmd.AddCommand(profilesRemoveCmd)
	accessProfilesCmd.AddCommand(profilesSetModulesCmd)
}
