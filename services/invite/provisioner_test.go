package invite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/repositories/memory"
	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	p      *Provisioner
	repos  *repositories.Repositories
	hasher password.Hasher
	org    *models.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(zap.NewNop())
	repos := store.Repositories()

	hasher, err := password.New(config.PasswordConfig{Algorithm: "bcrypt", Argon2Memory: 8 * 1024, Argon2Time: 1, Argon2Threads: 1, Argon2SaltLen: 16, Argon2KeyLen: 16, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	org := models.NewOrganization("Acme", "acme")
	require.NoError(t, repos.Organizations.Create(context.Background(), org))

	p := NewProvisioner(repos, store, hasher, nil, config.InviteConfig{
		TTL:            time.Hour,
		FrontendOrigin: "https://app.example.com/",
	}, zap.NewNop())
	return &fixture{p: p, repos: repos, hasher: hasher, org: org}
}

func TestCreateInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, " New@Example.com ", "", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", created.Invite.Email)
	assert.Equal(t, models.RoleUser, created.Invite.Role)
	assert.Len(t, created.Invite.Token, 2*tokenBytes)
	assert.Equal(t, "https://app.example.com/invite/"+created.Invite.Token, created.InviteURL)

	_, err = f.p.CreateInvite(ctx, f.org.ID, "x@example.com", models.Role("OWNER"), uuid.New())
	assert.ErrorIs(t, err, services.ErrInvalidRole)

	_, err = f.p.CreateInvite(ctx, f.org.ID, "  ", models.RoleUser, uuid.New())
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = f.p.CreateInvite(ctx, uuid.New(), "x@example.com", models.RoleUser, uuid.New())
	assert.ErrorIs(t, err, services.ErrOrganizationNotFound)
}

func TestCreateInvite_AlreadyMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := models.NewUser("member@example.com", "Member")
	require.NoError(t, f.repos.Users.Create(ctx, user))
	require.NoError(t, f.repos.Memberships.Create(ctx, models.NewMembership(user.ID, f.org.ID, models.RoleUser)))

	_, err := f.p.CreateInvite(ctx, f.org.ID, "member@example.com", models.RoleAdmin, uuid.New())
	assert.ErrorIs(t, err, services.ErrAlreadyMember)
}

func TestCreateInvite_ReplacesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.p.CreateInvite(ctx, f.org.ID, "new@example.com", models.RoleUser, uuid.New())
	require.NoError(t, err)
	b, err := f.p.CreateInvite(ctx, f.org.ID, "new@example.com", models.RoleAdmin, uuid.New())
	require.NoError(t, err)

	_, err = f.p.GetInvite(ctx, a.Invite.Token)
	assert.ErrorIs(t, err, services.ErrInviteNotFound)
	_, err = f.p.AcceptInvite(ctx, a.Invite.Token, "New", "secret123")
	assert.ErrorIs(t, err, services.ErrInviteNotFound)

	details, err := f.p.GetInvite(ctx, b.Invite.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, details.Role)
	assert.Equal(t, "Acme", details.OrgName)

	pending, err := f.p.ListInvites(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.Invite.ID, pending[0].ID)
}

func TestGetInvite_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, "late@example.com", models.RoleUser, uuid.New())
	require.NoError(t, err)

	f.p.now = func() time.Time { return created.Invite.ExpiresAt.Add(time.Second) }

	_, err = f.p.GetInvite(ctx, created.Invite.Token)
	assert.ErrorIs(t, err, services.ErrInviteExpired)
	assert.True(t, services.IsGoneError(err))

	_, err = f.p.AcceptInvite(ctx, created.Invite.Token, "Late", "secret123")
	assert.ErrorIs(t, err, services.ErrInviteExpired)

	_, err = f.p.GetInvite(ctx, "no-such-token")
	assert.ErrorIs(t, err, services.ErrInviteNotFound)
}

func TestAcceptInvite_CreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, "new@example.com", models.RoleAdmin, uuid.New())
	require.NoError(t, err)

	_, err = f.p.AcceptInvite(ctx, created.Invite.Token, "New", "short")
	assert.ErrorIs(t, err, services.ErrPasswordTooShort)

	res, err := f.p.AcceptInvite(ctx, created.Invite.Token, "New", "secret123")
	require.NoError(t, err)
	assert.True(t, res.AccountCreated)
	assert.True(t, res.MembershipCreated)
	assert.Equal(t, models.RoleAdmin, res.Role)

	user, err := f.repos.Users.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	ok, err := f.hasher.Verify("secret123", *user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.p.AcceptInvite(ctx, created.Invite.Token, "New", "secret123")
	assert.ErrorIs(t, err, services.ErrInviteNotFound, "a redeemed invite is gone")
}

func TestAcceptInvite_ClaimsUnclaimedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := models.NewUser("placeholder@example.com", "placeholder")
	require.NoError(t, f.repos.Users.Create(ctx, user))

	created, err := f.p.CreateInvite(ctx, f.org.ID, user.Email, models.RoleUser, uuid.New())
	require.NoError(t, err)

	res, err := f.p.AcceptInvite(ctx, created.Invite.Token, "Real Name", "secret123")
	require.NoError(t, err)
	assert.False(t, res.AccountCreated)
	assert.Equal(t, user.ID, res.UserID)

	claimed, err := f.repos.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, claimed.HasPassword())
	assert.Equal(t, "Real Name", claimed.Name)
}

func TestAcceptInvite_KeepsExistingPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hash, err := f.hasher.Hash("original-pw")
	require.NoError(t, err)
	user := models.NewUser("existing@example.com", "Existing")
	user.SetPasswordHash(hash)
	require.NoError(t, f.repos.Users.Create(ctx, user))

	created, err := f.p.CreateInvite(ctx, f.org.ID, user.Email, models.RoleUser, uuid.New())
	require.NoError(t, err)

	res, err := f.p.AcceptInvite(ctx, created.Invite.Token, "", "")
	require.NoError(t, err)
	assert.True(t, res.MembershipCreated)

	stored, err := f.repos.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := f.hasher.Verify("original-pw", *stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "existing password is kept")
}

func TestAcceptInvite_RejectsSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	super := models.NewUser("root@example.com", "Root")
	super.IsSuperAdmin = true
	require.NoError(t, f.repos.Users.Create(ctx, super))

	created, err := f.p.CreateInvite(ctx, f.org.ID, super.Email, models.RoleUser, uuid.New())
	require.NoError(t, err)

	_, err = f.p.AcceptInvite(ctx, created.Invite.Token, "", "secret123")
	assert.ErrorIs(t, err, services.ErrSuperAdminOrgForbidden)
}

func TestAcceptInvite_ConcurrentRedeemYieldsOneMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, "race@example.com", models.RoleUser, uuid.New())
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.p.AcceptInvite(ctx, created.Invite.Token, "Race", "secret123"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	members, err := f.repos.Memberships.ListMembers(ctx, f.org.ID, nil)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

// racingInvites fails the first n inserts the way a lost race on the
// pending-invite unique index does.
type racingInvites struct {
	repositories.InviteRepository
	failures int
	creates  int
}

func (r *racingInvites) Create(ctx context.Context, inv *models.Invite) error {
	r.creates++
	if r.creates <= r.failures {
		return fmt.Errorf("insert invite: %w", repositories.ErrDuplicate)
	}
	return r.InviteRepository.Create(ctx, inv)
}

// racingUsers fails every insert as if a concurrent accept created the user
type racingUsers struct {
	repositories.UserRepository
}

func (r *racingUsers) Create(context.Context, *models.User) error {
	return fmt.Errorf("insert user: %w", repositories.ErrDuplicate)
}

func (f *fixture) withRepos(t *testing.T, mutate func(*repositories.Repositories)) *Provisioner {
	t.Helper()
	repos := *f.repos
	mutate(&repos)
	p := *f.p
	p.users = repos.Users
	p.invites = repos.Invites
	return &p
}

func TestCreateInvite_RetriesLostInsertRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("a lost race is retried", func(t *testing.T) {
		invites := &racingInvites{InviteRepository: f.repos.Invites, failures: 1}
		p := f.withRepos(t, func(r *repositories.Repositories) { r.Invites = invites })

		created, err := p.CreateInvite(ctx, f.org.ID, "retry@example.com", models.RoleUser, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 2, invites.creates)

		pending, err := f.p.ListInvites(ctx, f.org.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, created.Invite.ID, pending[0].ID)
	})

	t.Run("persistent conflicts give up", func(t *testing.T) {
		invites := &racingInvites{InviteRepository: f.repos.Invites, failures: createAttempts}
		p := f.withRepos(t, func(r *repositories.Repositories) { r.Invites = invites })

		_, err := p.CreateInvite(ctx, f.org.ID, "stuck@example.com", models.RoleUser, uuid.New())
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
		assert.Equal(t, createAttempts, invites.creates)
	})
}

func TestAcceptInvite_LostAccountRaceIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, "twice@example.com", models.RoleUser, uuid.New())
	require.NoError(t, err)

	p := f.withRepos(t, func(r *repositories.Repositories) {
		r.Users = &racingUsers{UserRepository: f.repos.Users}
	})
	_, err = p.AcceptInvite(ctx, created.Invite.Token, "Twice", "secret123")
	assert.ErrorIs(t, err, services.ErrInviteNotFound)
	assert.Equal(t, services.CodeInviteInvalid, services.GetErrorCode(err))
}

func TestAcceptInvite_RequiresActiveOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.p.CreateInvite(ctx, f.org.ID, "later@example.com", models.RoleUser, uuid.New())
	require.NoError(t, err)

	_, err = f.repos.Organizations.Transition(ctx, f.org.ID, models.OrgStatusActive, models.OrgStatusDisabled, 0)
	require.NoError(t, err)

	_, err = f.p.AcceptInvite(ctx, created.Invite.Token, "Later", "secret123")
	assert.ErrorIs(t, err, services.ErrOrgDisabled)

	_, err = f.repos.Users.GetByEmail(ctx, "later@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound, "nothing is provisioned")
	pending, err := f.p.ListInvites(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "the invite stays usable once the org is enabled")
}
