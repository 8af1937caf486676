package user

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	iamDatamodel "github.com/rmaulana/iam-service/internal/core/datamodel/iam"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

type mockUserRepository struct {
	nextID      int64
	users       map[string]*iamDatamodel.User
	profileIDs  map[string]int64
	assignments map[int64][]int64
	deleted     []int64
	failWith    error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		nextID:      1,
		users:       map[string]*iamDatamodel.User{},
		profileIDs:  map[string]int64{},
		assignments: map[int64][]int64{},
	}
}

func (m *mockUserRepository) seed(key, email string, hidden bool) *iamDatamodel.User {
	row := &iamDatamodel.User{ID: m.nextID, UserKey: key, Email: email, IsActive: true, IsHidden: hidden}
	m.nextID++
	m.users[key] = row
	return row
}

func (m *mockUserRepository) List(_ context.Context, offset, limit int, includeHidden bool) ([]*iamDatamodel.User, int64, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var all []*iamDatamodel.User
	for _, row := range m.users {
		if row.IsHidden && !includeHidden {
			continue
		}
		all = append(all, row)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepository) GetByKey(_ context.Context, userKey string) (*iamDatamodel.User, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if row, ok := m.users[userKey]; ok {
		return row, nil
	}
	return nil, ErrNotFound
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*iamDatamodel.User, error) {
	for _, row := range m.users {
		if row.Email == email {
			return row, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepository) Create(_ context.Context, row *iamDatamodel.User) error {
	if m.failWith != nil {
		return m.failWith
	}
	row.ID = m.nextID
	m.nextID++
	m.users[row.UserKey] = row
	return nil
}

func (m *mockUserRepository) DeleteCascade(_ context.Context, userID int64) error {
	if m.failWith != nil {
		return m.failWith
	}
	for key, row := range m.users {
		if row.ID == userID {
			delete(m.users, key)
		}
	}
	delete(m.assignments, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *mockUserRepository) ProfileIDsByKeys(_ context.Context, profileKeys []string) ([]int64, error) {
	ids := make([]int64, 0, len(profileKeys))
	for _, key := range profileKeys {
		id, ok := m.profileIDs[key]
		if !ok {
			return nil, ErrUnknownProfiles
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockUserRepository) ReplaceProfiles(_ context.Context, userID int64, profileIDs []int64) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.assignments[userID] = profileIDs
	return nil
}

func (m *mockUserRepository) AssignedProfiles(_ context.Context, userID int64) ([]*iamDatamodel.AccessProfile, error) {
	var profiles []*iamDatamodel.AccessProfile
	for key, id := range m.profileIDs {
		for _, assigned := range m.assignments[userID] {
			if assigned == id {
				profiles = append(profiles, &iamDatamodel.AccessProfile{ID: id, ProfileKey: key, Title: key})
			}
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Title < profiles[j].Title })
	return profiles, nil
}

var _ = ginkgo.Describe("UserService", func() {
	var (
		service *Service
		repo    *mockUserRepository
		ctx     context.Context
	)

	ginkgo.BeforeEach(func() {
		repo = newMockUserRepository()
		service = NewService(repo, nil, bcrypt.MinCost, nil)
		ctx = context.Background()
	})

	ginkgo.Describe("ListUsers", func() {
		ginkgo.BeforeEach(func() {
			repo.seed("usr-a", "alice@example.com", false)
			repo.seed("usr-b", "bob@example.com", false)
			repo.seed("usr-m", "machine@example.com", true)
		})

		ginkgo.It("should exclude hidden accounts from the page and the total", func() {
			resp, err := service.ListUsers(ctx, 1, 10)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resp.Total).To(gomega.Equal(int64(2)))
			gomega.Expect(resp.Users).To(gomega.HaveLen(2))
			for _, u := range resp.Users {
				gomega.Expect(u.Email).ToNot(gomega.Equal("machine@example.com"))
			}
		})

		ginkgo.It("should page results", func() {
			resp, err := service.ListUsers(ctx, 2, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resp.Users).To(gomega.HaveLen(1))
			gomega.Expect(resp.Users[0].Email).To(gomega.Equal("bob@example.com"))
		})
	})

	ginkgo.Describe("CreateUser", func() {
		ginkgo.It("should mint a prefixed key and hash the password", func() {
			u, err := service.CreateUser(ctx, CreateUserDTO{
				Email:          "carol@example.com",
				Password:       "long-enough-password",
				FirstName:      "Carol",
				SessionExpires: true,
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(u.UserKey).To(gomega.HavePrefix("usr-"))
			gomega.Expect(u.IsActive).To(gomega.BeTrue())

			stored := repo.users[u.UserKey]
			gomega.Expect(stored.PasswordHash).ToNot(gomega.BeEmpty())
			gomega.Expect(stored.PasswordHash).ToNot(gomega.Equal("long-enough-password"))
			gomega.Expect(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("long-enough-password"))).To(gomega.Succeed())
		})

		ginkgo.It("should reject a duplicate email", func() {
			repo.seed("usr-a", "alice@example.com", false)

			_, err := service.CreateUser(ctx, CreateUserDTO{
				Email:     "alice@example.com",
				Password:  "long-enough-password",
				FirstName: "Alice",
			})

			gomega.Expect(err).To(gomega.MatchError(ErrEmailTaken))
		})

		ginkgo.It("should reject a short password", func() {
			_, err := service.CreateUser(ctx, CreateUserDTO{
				Email:     "carol@example.com",
				Password:  "short",
				FirstName: "Carol",
			})

			gomega.Expect(err).To(gomega.MatchError("password must be at least 8 characters"))
		})
	})

	ginkgo.Describe("CreateSuperadmin", func() {
		ginkgo.It("should create a hidden superadmin without session expiry", func() {
			u, err := service.CreateSuperadmin(ctx, "root@example.com", "long-enough-password")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(u.IsSuperadmin).To(gomega.BeTrue())
			gomega.Expect(u.IsHidden).To(gomega.BeTrue())
			gomega.Expect(u.SessionExpires).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("RemoveUser", func() {
		ginkgo.It("should cascade delete assignments with the user", func() {
			row := repo.seed("usr-a", "alice@example.com", false)
			repo.assignments[row.ID] = []int64{5}

			err := service.RemoveUser(ctx, "usr-a")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.deleted).To(gomega.ContainElement(row.ID))
			gomega.Expect(repo.assignments).ToNot(gomega.HaveKey(row.ID))
		})

		ginkgo.It("should return not found for an unknown key", func() {
			err := service.RemoveUser(ctx, "usr-missing")

			gomega.Expect(err).To(gomega.MatchError(ErrNotFound))
		})
	})

	ginkgo.Describe("SetProfiles", func() {
		ginkgo.BeforeEach(func() {
			repo.profileIDs["prf-acct"] = 5
			repo.profileIDs["prf-ops"] = 6
		})

		ginkgo.It("should replace the full assignment set", func() {
			row := repo.seed("usr-a", "alice@example.com", false)
			repo.assignments[row.ID] = []int64{6}

			err := service.SetProfiles(ctx, "usr-a", []string{"prf-acct"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.assignments[row.ID]).To(gomega.Equal([]int64{5}))
		})

		ginkgo.It("should strip all profiles on an empty list", func() {
			row := repo.seed("usr-a", "alice@example.com", false)
			repo.assignments[row.ID] = []int64{5, 6}

			err := service.SetProfiles(ctx, "usr-a", nil)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.assignments[row.ID]).To(gomega.BeEmpty())
		})

		ginkgo.It("should fail wholesale on an unknown profile key", func() {
			row := repo.seed("usr-a", "alice@example.com", false)
			repo.assignments[row.ID] = []int64{6}

			err := service.SetProfiles(ctx, "usr-a", []string{"prf-acct", "prf-nope"})

			gomega.Expect(err).To(gomega.MatchError(ErrUnknownProfiles))
			gomega.Expect(repo.assignments[row.ID]).To(gomega.Equal([]int64{6}))
		})
	})

	ginkgo.Describe("UserProfiles", func() {
		ginkgo.It("should list the assigned profiles", func() {
			repo.profileIDs["prf-acct"] = 5
			row := repo.seed("usr-a", "alice@example.com", false)
			repo.assignments[row.ID] = []int64{5}

			profiles, err := service.UserProfiles(ctx, "usr-a")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(profiles).To(gomega.HaveLen(1))
			gomega.Expect(profiles[0].ProfileKey).To(gomega.Equal("prf-acct"))
		})
	})

	ginkgo.Describe("when the repository fails", func() {
		ginkgo.It("should propagate the error", func() {
			repo.failWith = errors.New("database down")

			_, err := service.ListUsers(ctx, 1, 10)

			gomega.Expect(err).To(gomega.MatchError("database down"))
		})
	})
})
