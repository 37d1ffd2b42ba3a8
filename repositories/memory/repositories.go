package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
)

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// OrganizationRepository implements repositories.OrganizationRepository
type OrganizationRepository struct{ s *Store }

// Create creates a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.s.run(ctx, func(t *tables) error {
		for _, o := range t.orgs {
			if o.Slug == org.Slug {
				return fmt.Errorf("organization slug %q: %w", org.Slug, repositories.ErrDuplicate)
			}
		}
		t.orgs[org.ID] = *org
		return nil
	})
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var out models.Organization
	err := r.s.run(ctx, func(t *tables) error {
		o, ok := t.orgs[id]
		if !ok {
			return notFound("organization", id)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List retrieves organizations, newest first
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	var out []*models.Organization
	err := r.s.run(ctx, func(t *tables) error {
		for _, o := range t.orgs {
			o := o
			out = append(out, &o)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), err
}

// Transition moves an organization between statuses and bumps its epoch
func (r *OrganizationRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.OrgStatus, minEpoch int64) (*models.Organization, error) {
	var out models.Organization
	err := r.s.run(ctx, func(t *tables) error {
		o, ok := t.orgs[id]
		if !ok {
			return notFound("organization", id)
		}
		if o.Status != from {
			return fmt.Errorf("transition organization %s from %s: %w", id, from, repositories.ErrConflict)
		}
		o.Status = to
		o.AuthEpoch++
		if minEpoch > o.AuthEpoch {
			o.AuthEpoch = minEpoch
		}
		o.UpdatedAt = time.Now()
		t.orgs[id] = o
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UserRepository implements repositories.UserRepository
type UserRepository struct{ s *Store }

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.s.run(ctx, func(t *tables) error {
		for _, u := range t.users {
			if u.Email == user.Email {
				return fmt.Errorf("user email: %w", repositories.ErrDuplicate)
			}
		}
		t.users[user.ID] = *user
		return nil
	})
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out models.User
	err := r.s.run(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return notFound("user", id)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	var out *models.User
	err := r.s.run(ctx, func(t *tables) error {
		for _, u := range t.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return notFound("user by email", "")
	})
	return out, err
}

// Update updates a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.s.run(ctx, func(t *tables) error {
		if _, ok := t.users[user.ID]; !ok {
			return notFound("user", user.ID)
		}
		t.users[user.ID] = *user
		return nil
	})
}

// CountSuperAdmins returns the number of super-admin accounts
func (r *UserRepository) CountSuperAdmins(ctx context.Context) (int, error) {
	count := 0
	err := r.s.run(ctx, func(t *tables) error {
		for _, u := range t.users {
			if u.IsSuperAdmin {
				count++
			}
		}
		return nil
	})
	return count, err
}

// MembershipRepository implements repositories.MembershipRepository
type MembershipRepository struct{ s *Store }

func findMembership(t *tables, userID, orgID uuid.UUID) (models.Membership, bool) {
	for _, m := range t.memberships {
		if m.UserID == userID && m.OrgID == orgID {
			return m, true
		}
	}
	return models.Membership{}, false
}

// Create creates a membership
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	return r.s.run(ctx, func(t *tables) error {
		if _, ok := findMembership(t, m.UserID, m.OrgID); ok {
			return fmt.Errorf("membership %s/%s: %w", m.OrgID, m.UserID, repositories.ErrDuplicate)
		}
		if _, ok := t.users[m.UserID]; !ok {
			return notFound("user", m.UserID)
		}
		if _, ok := t.orgs[m.OrgID]; !ok {
			return notFound("organization", m.OrgID)
		}
		t.memberships[m.ID] = *m
		return nil
	})
}

// Get retrieves the membership for (userID, orgID)
func (r *MembershipRepository) Get(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	var out models.Membership
	err := r.s.run(ctx, func(t *tables) error {
		m, ok := findMembership(t, userID, orgID)
		if !ok {
			return notFound("membership", orgID.String()+"/"+userID.String())
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByUser retrieves all memberships of a user, oldest first
func (r *MembershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	var out []*models.Membership
	err := r.s.run(ctx, func(t *tables) error {
		for _, m := range t.memberships {
			if m.UserID == userID {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// ListMembers retrieves the members of an org joined with their user
func (r *MembershipRepository) ListMembers(ctx context.Context, orgID uuid.UUID, role *models.Role) ([]*models.MemberView, error) {
	var out []*models.MemberView
	err := r.s.run(ctx, func(t *tables) error {
		for _, m := range t.memberships {
			if m.OrgID != orgID || (role != nil && m.Role != *role) {
				continue
			}
			u := t.users[m.UserID]
			out = append(out, &models.MemberView{
				UserID:     u.ID,
				Email:      u.Email,
				Name:       u.Name,
				Role:       m.Role,
				Disabled:   m.Disabled,
				JoinedAt:   m.CreatedAt,
				HasAccount: u.HasPassword(),
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

// Update updates role and disabled flag of a membership
func (r *MembershipRepository) Update(ctx context.Context, m *models.Membership) error {
	return r.s.run(ctx, func(t *tables) error {
		existing, ok := findMembership(t, m.UserID, m.OrgID)
		if !ok {
			return notFound("membership", m.OrgID.String()+"/"+m.UserID.String())
		}
		existing.Role = m.Role
		existing.Disabled = m.Disabled
		existing.UpdatedAt = time.Now()
		t.memberships[existing.ID] = existing
		m.UpdatedAt = existing.UpdatedAt
		return nil
	})
}

// DeleteByOrg removes every membership of an organization
func (r *MembershipRepository) DeleteByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var deleted int64
	err := r.s.run(ctx, func(t *tables) error {
		for id, m := range t.memberships {
			if m.OrgID == orgID {
				delete(t.memberships, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

// InviteRepository implements repositories.InviteRepository
type InviteRepository struct{ s *Store }

// Create inserts a new invite
func (r *InviteRepository) Create(ctx context.Context, inv *models.Invite) error {
	return r.s.run(ctx, func(t *tables) error {
		for _, existing := range t.invites {
			if existing.Token == inv.Token {
				return fmt.Errorf("invite token: %w", repositories.ErrDuplicate)
			}
			if !inv.Accepted && !existing.Accepted && existing.Email == inv.Email && existing.OrgID == inv.OrgID {
				return fmt.Errorf("pending invite for %s: %w", inv.Email, repositories.ErrDuplicate)
			}
		}
		t.invites[inv.ID] = *inv
		return nil
	})
}

// GetByToken retrieves an invite by its token
func (r *InviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	var out *models.Invite
	err := r.s.run(ctx, func(t *tables) error {
		for _, inv := range t.invites {
			if inv.Token == token {
				inv := inv
				out = &inv
				return nil
			}
		}
		return notFound("invite by token", "")
	})
	return out, err
}

// DeletePending removes unaccepted invites for (email, orgID)
func (r *InviteRepository) DeletePending(ctx context.Context, email string, orgID uuid.UUID) (int64, error) {
	email = models.NormalizeEmail(email)
	var deleted int64
	err := r.s.run(ctx, func(t *tables) error {
		for id, inv := range t.invites {
			if inv.Email == email && inv.OrgID == orgID && !inv.Accepted {
				delete(t.invites, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

// DeletePendingByOrg removes every unaccepted invite of an org
func (r *InviteRepository) DeletePendingByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var deleted int64
	err := r.s.run(ctx, func(t *tables) error {
		for id, inv := range t.invites {
			if inv.OrgID == orgID && !inv.Accepted {
				delete(t.invites, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

// MarkAccepted flags a pending invite as accepted
func (r *InviteRepository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.s.run(ctx, func(t *tables) error {
		inv, ok := t.invites[id]
		if !ok || inv.Accepted {
			return fmt.Errorf("accept invite %s: %w", id, repositories.ErrConflict)
		}
		inv.Accepted = true
		inv.AcceptedAt = &at
		t.invites[id] = inv
		return nil
	})
}

// ListPending retrieves unaccepted invites of an org, newest first
func (r *InviteRepository) ListPending(ctx context.Context, orgID uuid.UUID) ([]*models.Invite, error) {
	var out []*models.Invite
	err := r.s.run(ctx, func(t *tables) error {
		for _, inv := range t.invites {
			if inv.OrgID == orgID && !inv.Accepted {
				inv := inv
				out = append(out, &inv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// AuditRepository implements repositories.AuditRepository
type AuditRepository struct{ s *Store }

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	return r.s.run(ctx, func(t *tables) error {
		t.audit = append(t.audit, *log)
		return nil
	})
}

// ListByOrg retrieves audit logs for an organization, newest first
func (r *AuditRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	err := r.s.run(ctx, func(t *tables) error {
		for i := len(t.audit) - 1; i >= 0; i-- {
			if l := t.audit[i]; l.OrgID != nil && *l.OrgID == orgID {
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, limit, offset), err
}
