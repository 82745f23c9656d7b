package members

import (
	"context"
	"fmt"
	"strings"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service manages the member registry and admin role transitions.
// Authorization of the caller is the access layer's problem; identifiers
// passed in are trusted.
type Service struct {
	members storage.MemberStore
	wallets storage.WalletStore
	log     *logger.Logger
}

// New constructs a member service.
func New(members storage.MemberStore, wallets storage.WalletStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("members")
	}
	return &Service{
		members: members,
		wallets: wallets,
		log:     log,
	}
}

// Create registers a member with a zero capital position. Registration is a
// single store write; there is no asynchronous trigger to wait on.
func (s *Service) Create(ctx context.Context, fullName, email, groupID string) (member.Member, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" {
		return member.Member{}, errs.Validation("member", "", "full name is required")
	}
	if email == "" {
		return member.Member{}, errs.Validation("member", "", "email is required")
	}

	m := member.Member{
		FullName: fullName,
		Email:    email,
		Role:     member.RoleMember,
		GroupID:  strings.TrimSpace(groupID),
	}
	created, err := s.members.CreateMember(ctx, m)
	if err != nil {
		return member.Member{}, fmt.Errorf("create member: %w", err)
	}
	s.log.Infof("member %s registered", created.ID)
	return created, nil
}

// Get retrieves a member by identifier.
func (s *Service) Get(ctx context.Context, id string) (member.Member, error) {
	return s.members.GetMember(ctx, id)
}

// GetByEmail retrieves a member by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (member.Member, error) {
	return s.members.GetMemberByEmail(ctx, email)
}

// List returns all members.
func (s *Service) List(ctx context.Context) ([]member.Member, error) {
	return s.members.ListMembers(ctx)
}

// CapitalEntries returns a member's capital journal.
func (s *Service) CapitalEntries(ctx context.Context, memberID string) ([]member.CapitalEntry, error) {
	return s.members.ListCapitalEntries(ctx, memberID)
}

// PromoteToAdmin grants a member an admin role and makes sure their earnings
// wallet exists. Promoting an existing admin just updates the role.
func (s *Service) PromoteToAdmin(ctx context.Context, memberID string, role member.AdminRole) (member.Member, error) {
	switch role {
	case member.AdminRoleSuper, member.AdminRoleOperations:
	default:
		return member.Member{}, errs.Validation("member", memberID, "unknown admin role %q", role)
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return member.Member{}, errs.Validation("member", memberID, "unknown member")
	}

	if _, err := s.wallets.GetWalletByOwner(ctx, memberID, revenue.OwnerAdmin); err != nil {
		if _, err := s.wallets.CreateWallet(ctx, revenue.Wallet{OwnerID: memberID, OwnerType: revenue.OwnerAdmin}); err != nil {
			return member.Member{}, fmt.Errorf("create admin wallet: %w", err)
		}
	}

	m.Role = member.RoleAdmin
	m.AdminRole = role
	updated, err := s.members.UpdateMember(ctx, m)
	if err != nil {
		return member.Member{}, fmt.Errorf("promote member %s: %w", memberID, err)
	}
	s.log.Infof("member %s promoted to %s", memberID, role)
	return updated, nil
}

// DemoteFromAdmin clears a member's admin role. The wallet and its entry
// trail are retained for audit.
func (s *Service) DemoteFromAdmin(ctx context.Context, memberID string) (member.Member, error) {
	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return member.Member{}, errs.Validation("member", memberID, "unknown member")
	}
	if !m.IsAdmin() {
		return member.Member{}, errs.InvalidState("member", memberID, "not an admin")
	}

	m.Role = member.RoleMember
	m.AdminRole = ""
	updated, err := s.members.UpdateMember(ctx, m)
	if err != nil {
		return member.Member{}, fmt.Errorf("demote member %s: %w", memberID, err)
	}
	s.log.Infof("member %s demoted to plain member", memberID)
	return updated, nil
}
