package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rmaulana/iam-service/internal/permission"
	permissionPostgres "github.com/rmaulana/iam-service/internal/permission/postgres"
)

func TestPermissionPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Postgres Suite")
}

// SQLite-compatible models: same table and column names as the production
// schema, without the postgres-only column defaults.
type sqliteAccessProfile struct {
	ID         int64  `gorm:"primaryKey"`
	ProfileKey string `gorm:"column:profile_key;uniqueIndex;not null"`
	Title      string `gorm:"column:title;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (sqliteAccessProfile) TableName() string { return "access_profiles" }

type sqliteUserAccessProfile struct {
	ID              int64 `gorm:"primaryKey"`
	UserID          int64 `gorm:"column:user_id;not null"`
	AccessProfileID int64 `gorm:"column:access_profile_id;not null"`
	CreatedAt       time.Time
}

func (sqliteUserAccessProfile) TableName() string { return "user_access_profiles" }

type sqliteModule struct {
	ID        int64  `gorm:"primaryKey"`
	ModuleKey string `gorm:"column:module_key;uniqueIndex;not null"`
	Title     string `gorm:"column:title;not null"`
	CreatedAt time.Time
}

func (sqliteModule) TableName() string { return "modules" }

type sqliteModuleEntity struct {
	ID        int64  `gorm:"primaryKey"`
	ModuleID  int64  `gorm:"column:module_id;not null"`
	Name      string `gorm:"column:name;not null"`
	Label     string `gorm:"column:label;not null"`
	CreatedAt time.Time
}

func (sqliteModuleEntity) TableName() string { return "module_entities" }

type sqliteAccessProfileModule struct {
	ID              int64 `gorm:"primaryKey"`
	AccessProfileID int64 `gorm:"column:access_profile_id;not null"`
	ModuleID        int64 `gorm:"column:module_id;not null"`
	CreatedAt       time.Time
}

func (sqliteAccessProfileModule) TableName() string { return "access_profile_modules" }

type sqlitePermission struct {
	ID                    int64  `gorm:"primaryKey"`
	PermissionKey         string `gorm:"column:permission_key;uniqueIndex;not null"`
	AccessProfileModuleID int64  `gorm:"column:access_profile_module_id;not null"`
	ModuleEntityID        int64  `gorm:"column:module_entity_id;not null"`
	CanCreate             bool   `gorm:"column:can_create"`
	CanRead               bool   `gorm:"column:can_read"`
	CanUpdate             bool   `gorm:"column:can_update"`
	CanDelete             bool   `gorm:"column:can_delete"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (sqlitePermission) TableName() string { return "permissions" }

type sqliteCustomPermission struct {
	ID            int64  `gorm:"primaryKey"`
	PermissionKey string `gorm:"column:permission_key;uniqueIndex;not null"`
	Name          string `gorm:"column:name;uniqueIndex;not null"`
	Description   string `gorm:"column:description"`
	CreatedAt     time.Time
}

func (sqliteCustomPermission) TableName() string { return "custom_permissions" }

type sqliteProfileCustomPermission struct {
	ID                 int64 `gorm:"primaryKey"`
	AccessProfileID    int64 `gorm:"column:access_profile_id;not null"`
	CustomPermissionID int64 `gorm:"column:custom_permission_id;not null"`
	CreatedAt          time.Time
}

func (sqliteProfileCustomPermission) TableName() string {
	return "access_profile_custom_permissions"
}

var _ = Describe("Permission Repository", func() {
	var (
		db   *gorm.DB
		repo permission.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&sqliteAccessProfile{},
			&sqliteUserAccessProfile{},
			&sqliteModule{},
			&sqliteModuleEntity{},
			&sqliteAccessProfileModule{},
			&sqlitePermission{},
			&sqliteCustomPermission{},
			&sqliteProfileCustomPermission{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = permissionPostgres.NewPermissionRepository(db)
		ctx = context.Background()
	})

	seedProfile := func(key string) int64 {
		profile := sqliteAccessProfile{ProfileKey: key, Title: key}
		Expect(db.Create(&profile).Error).To(Succeed())
		return profile.ID
	}

	seedModule := func(key string, entities ...string) (int64, []int64) {
		module := sqliteModule{ModuleKey: key, Title: key}
		Expect(db.Create(&module).Error).To(Succeed())
		entityIDs := make([]int64, 0, len(entities))
		for _, name := range entities {
			entity := sqliteModuleEntity{ModuleID: module.ID, Name: name, Label: name}
			Expect(db.Create(&entity).Error).To(Succeed())
			entityIDs = append(entityIDs, entity.ID)
		}
		return module.ID, entityIDs
	}

	Describe("ProfileByKey", func() {
		It("should map a missing profile to the domain sentinel", func() {
			_, err := repo.ProfileByKey(ctx, "prf-missing")
			Expect(err).To(MatchError(permission.ErrProfileNotFound))
		})
	})

	Describe("EntityGrantRows", func() {
		It("should only return rows joined through a live attachment", func() {
			profileID := seedProfile("prf-a")
			Expect(db.Create(&sqliteUserAccessProfile{UserID: 7, AccessProfileID: profileID}).Error).To(Succeed())
			moduleID, entityIDs := seedModule("mdl-billing", "invoice")

			Expect(repo.AttachModule(ctx, profileID, moduleID, entityIDs)).To(Succeed())
			Expect(db.Model(&sqlitePermission{}).
				Where("module_entity_id = ?", entityIDs[0]).
				Update("can_read", true).Error).To(Succeed())

			rows, err := repo.EntityGrantRows(ctx, []int64{profileID}, []string{"invoice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Bits.Read).To(BeTrue())

			// detaching must make the rows invisible even if any were left behind
			_, err = repo.DetachModule(ctx, profileID, moduleID)
			Expect(err).NotTo(HaveOccurred())

			rows, err = repo.EntityGrantRows(ctx, []int64{profileID}, []string{"invoice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("should not return rows whose entity belongs to another module", func() {
			profileID := seedProfile("prf-a")
			billingID, _ := seedModule("mdl-billing")
			_, reportEntityIDs := seedModule("mdl-reporting", "report")

			// attachment covers billing, but the row points at a reporting entity
			Expect(repo.AttachModule(ctx, profileID, billingID, reportEntityIDs)).To(Succeed())

			rows, err := repo.EntityGrantRows(ctx, []int64{profileID}, []string{"report"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("AttachModule and DetachModule", func() {
		It("should create zero-grant rows and cascade them on detach", func() {
			profileID := seedProfile("prf-a")
			moduleID, entityIDs := seedModule("mdl-billing", "invoice", "payment_method")

			Expect(repo.AttachModule(ctx, profileID, moduleID, entityIDs)).To(Succeed())

			var count int64
			Expect(db.Model(&sqlitePermission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(2)))

			affected, err := repo.DetachModule(ctx, profileID, moduleID)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(1)))

			Expect(db.Model(&sqlitePermission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("should report zero affected rows for an absent attachment", func() {
			profileID := seedProfile("prf-a")
			affected, err := repo.DetachModule(ctx, profileID, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(BeZero())
		})
	})

	Describe("UpdatePermissionBits", func() {
		It("should report zero affected rows for an unknown key", func() {
			affected, err := repo.UpdatePermissionBits(ctx, "prm-missing", permission.MustBits("R"))
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(BeZero())
		})
	})

	Describe("RelateCustomPermission", func() {
		It("should not duplicate an existing relation", func() {
			profileID := seedProfile("prf-a")
			custom := sqliteCustomPermission{PermissionKey: "cpm-export", Name: "export_reports"}
			Expect(db.Create(&custom).Error).To(Succeed())

			Expect(repo.RelateCustomPermission(ctx, profileID, custom.ID)).To(Succeed())
			Expect(repo.RelateCustomPermission(ctx, profileID, custom.ID)).To(Succeed())

			var count int64
			Expect(db.Model(&sqliteProfileCustomPermission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("InTransaction", func() {
		It("should roll back all changes when the callback fails", func() {
			profileID := seedProfile("prf-a")
			moduleID, entityIDs := seedModule("mdl-billing", "invoice")

			err := repo.InTransaction(ctx, func(tx permission.Repository) error {
				if err := tx.AttachModule(ctx, profileID, moduleID, entityIDs); err != nil {
					return err
				}
				return errors.New("boom")
			})
			Expect(err).To(MatchError("boom"))

			var count int64
			Expect(db.Model(&sqliteAccessProfileModule{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})
})
