package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rmaulana/iam-service/internal/accessprofile"
	"github.com/rmaulana/iam-service/internal/permission"
	"github.com/rmaulana/iam-service/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			clearSeedData(db)
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		adminEmail := "admin@mail.com"
		if !rowExists(db, "SELECT 1 FROM users WHERE email = ?", adminEmail) {
			if err := db.Exec(
				"INSERT INTO users (user_key, email, password_hash, first_name, last_name, is_active, is_superadmin, is_hidden, session_expires) VALUES (?, ?, ?, 'Demo', 'Admin', true, true, false, true)",
				user.NewUserKey(), adminEmail, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert admin user: %v", err)
			}
			fmt.Println("Seeded superadmin user:", adminEmail)
		}

		memberEmail := "member@mail.com"
		if !rowExists(db, "SELECT 1 FROM users WHERE email = ?", memberEmail) {
			if err := db.Exec(
				"INSERT INTO users (user_key, email, password_hash, first_name, last_name, is_active) VALUES (?, ?, ?, 'Demo', 'Member', true)",
				user.NewUserKey(), memberEmail, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert member user: %v", err)
			}
			fmt.Println("Seeded member user:", memberEmail)
		}

		seedModule(db, "mdl-billing", "Billing", []string{"invoice", "payment_method", "subscription"})
		seedModule(db, "mdl-reporting", "Reporting", []string{"report", "dashboard"})

		customPermissions := []struct {
			Name string
			Desc string
		}{
			{"export_reports", "Can export reports to file"},
			{"impersonate_users", "Can act on behalf of another user"},
		}
		for _, p := range customPermissions {
			if rowExists(db, "SELECT 1 FROM custom_permissions WHERE name = ?", p.Name) {
				continue
			}
			if err := db.Exec(
				"INSERT INTO custom_permissions (permission_key, name, description) VALUES (?, ?, ?)",
				permission.NewCustomPermissionKey(), p.Name, p.Desc).Error; err != nil {
				log.Fatalf("failed to insert custom permission %s: %v", p.Name, err)
			}
			fmt.Println("Seeded custom permission:", p.Name)
		}

		profileTitle := "IAM Administrators"
		if !rowExists(db, "SELECT 1 FROM access_profiles WHERE title = ?", profileTitle) {
			if err := db.Exec(
				"INSERT INTO access_profiles (profile_key, title, description, tag) VALUES (?, ?, 'Full control over users and profiles', 'builtin')",
				accessprofile.NewProfileKey(), profileTitle).Error; err != nil {
				log.Fatalf("failed to insert access profile: %v", err)
			}
			fmt.Println("Seeded access profile:", profileTitle)
		}

		var profileID int64
		if err := db.Raw("SELECT id FROM access_profiles WHERE title = ?", profileTitle).Row().Scan(&profileID); err != nil {
			log.Fatalf("failed to lookup access profile id: %v", err)
		}

		var memberID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", memberEmail).Row().Scan(&memberID); err != nil {
			log.Fatalf("failed to lookup member user id: %v", err)
		}
		if !rowExists(db, "SELECT 1 FROM user_access_profiles WHERE user_id = ? AND access_profile_id = ?", memberID, profileID) {
			if err := db.Exec(
				"INSERT INTO user_access_profiles (user_id, access_profile_id) VALUES (?, ?)",
				memberID, profileID).Error; err != nil {
				log.Fatalf("failed to assign profile to member user: %v", err)
			}
		}

		attachModuleWithGrants(db, profileID, "mdl-iam")
		attachModuleWithGrants(db, profileID, "mdl-billing")

		fmt.Println("Seed data applied successfully")
	},
}

func rowExists(db *gorm.DB, query string, args ...interface{}) bool {
	var one int
	return db.Raw(query, args...).Row().Scan(&one) == nil
}

func seedModule(db *gorm.DB, moduleKey, title string, entities []string) {
	if !rowExists(db, "SELECT 1 FROM modules WHERE module_key = ?", moduleKey) {
		if err := db.Exec("INSERT INTO modules (module_key, title) VALUES (?, ?)", moduleKey, title).Error; err != nil {
			log.Fatalf("failed to insert module %s: %v", moduleKey, err)
		}
		fmt.Println("Seeded module:", moduleKey)
	}

	var moduleID int64
	if err := db.Raw("SELECT id FROM modules WHERE module_key = ?", moduleKey).Row().Scan(&moduleID); err != nil {
		log.Fatalf("module not found after insert %s: %v", moduleKey, err)
	}

	for _, name := range entities {
		if rowExists(db, "SELECT 1 FROM module_entities WHERE module_id = ? AND name = ?", moduleID, name) {
			continue
		}
		if err := db.Exec(
			"INSERT INTO module_entities (module_id, name, label) VALUES (?, ?, INITCAP(REPLACE(?, '_', ' ')))",
			moduleID, name, name).Error; err != nil {
			log.Fatalf("failed to insert entity %s for module %s: %v", name, moduleKey, err)
		}
	}
}

// attachModuleWithGrants attaches the module to the profile and grants full
// CRUD on every entity the module exposes.
func attachModuleWithGrants(db *gorm.DB, profileID int64, moduleKey string) {
	var moduleID int64
	if err := db.Raw("SELECT id FROM modules WHERE module_key = ?", moduleKey).Row().Scan(&moduleID); err != nil {
		log.Fatalf("module not found %s: %v", moduleKey, err)
	}

	if !rowExists(db, "SELECT 1 FROM access_profile_modules WHERE access_profile_id = ? AND module_id = ?", profileID, moduleID) {
		if err := db.Exec(
			"INSERT INTO access_profile_modules (access_profile_id, module_id) VALUES (?, ?)",
			profileID, moduleID).Error; err != nil {
			log.Fatalf("failed to attach module %s: %v", moduleKey, err)
		}
	}

	var attachmentID int64
	if err := db.Raw(
		"SELECT id FROM access_profile_modules WHERE access_profile_id = ? AND module_id = ?",
		profileID, moduleID).Row().Scan(&attachmentID); err != nil {
		log.Fatalf("attachment not found for module %s: %v", moduleKey, err)
	}

	rows, err := db.Raw("SELECT id FROM module_entities WHERE module_id = ?", moduleID).Rows()
	if err != nil {
		log.Fatalf("failed to list entities for module %s: %v", moduleKey, err)
	}
	defer rows.Close()

	var entityIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Fatalf("failed to scan entity id: %v", err)
		}
		entityIDs = append(entityIDs, id)
	}

	for _, entityID := range entityIDs {
		if rowExists(db, "SELECT 1 FROM permissions WHERE access_profile_module_id = ? AND module_entity_id = ?", attachmentID, entityID) {
			continue
		}
		if err := db.Exec(
			"INSERT INTO permissions (permission_key, access_profile_module_id, module_entity_id, can_create, can_read, can_update, can_delete) VALUES (?, ?, ?, true, true, true, true)",
			permission.NewPermissionKey(), attachmentID, entityID).Error; err != nil {
			log.Fatalf("failed to grant entity %d on module %s: %v", entityID, moduleKey, err)
		}
	}

	fmt.Printf("Attached module %s with full grants\n", moduleKey)
}

func clearSeedData(db *gorm.DB) {
	// the module catalog is owned by migrations, so it stays
	tables := []string{
		"access_profile_custom_permissions",
		"permissions",
		"access_profile_modules",
		"user_access_profiles",
		"custom_permissions",
		"access_profiles",
		"users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("failed to clear table %s: %v", table, err)
		}
	}
	fmt.Println("Cleared existing data")
}
