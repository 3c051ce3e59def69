package service

import (
	"errors"
	"log/slog"

	"auth-core-service/internal/domain"
	"auth-core-service/internal/repository"
)

// StoreSet bundles the repositories of one physical store.
type StoreSet struct {
	Users repository.UserRepository
	OTPs  repository.OTPRepository
}

// Stores holds both physical stores. Which one owns an identity is decided
// per request by the IdentityResolver.
type Stores struct {
	Primary   StoreSet
	Secondary StoreSet
}

func (s Stores) For(server domain.AccessServer) StoreSet {
	if server == domain.AccessServerSecondary {
		return s.Secondary
	}
	return s.Primary
}

type ResolveQuery struct {
	ID       uint
	UUID     string
	Username string
	GroupID  int
}

type ResolveOptions struct {
	// ReturnNone makes a miss in both stores return (nil, nil) instead of
	// ErrIncorrectCredentials.
	ReturnNone bool
	// AssertNotDeactivated rejects deactivated accounts with
	// ErrIncorrectCredentials rather than a distinct error, so a probe
	// cannot tell "deactivated" from "unknown".
	AssertNotDeactivated bool
	// AssertRefreshToken compares the legacy user-row refresh token.
	AssertRefreshToken string
}

// IdentityResolver decides which physical store owns an identity. The two
// lookups are independent reads, not a distributed transaction; callers
// tolerate the window in which the stores can disagree.
type IdentityResolver struct {
	stores Stores
	logger *slog.Logger
}

func NewIdentityResolver(stores Stores, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{stores: stores, logger: logger}
}

func (r *IdentityResolver) Stores() Stores { return r.stores }

func (r *IdentityResolver) Resolve(q ResolveQuery, opts ResolveOptions) (*domain.User, error) {
	primary, err := r.lookup(r.stores.Primary, q, opts)
	if err != nil {
		return nil, err
	}
	secondary, err := r.lookup(r.stores.Secondary, q, opts)
	if err != nil {
		return nil, err
	}

	switch {
	case primary != nil && secondary != nil:
		// Both stores claim the identity. Preserved behavior: warn and
		// bind to the secondary store.
		r.logger.Warn("identity present in both stores",
			"username", q.Username,
			"group_id", q.GroupID,
		)
		secondary.AccessServer = domain.AccessServerSecondary
		return secondary, nil
	case primary != nil:
		primary.AccessServer = domain.AccessServerPrimary
		return primary, nil
	case secondary != nil:
		secondary.AccessServer = domain.AccessServerSecondary
		return secondary, nil
	default:
		if opts.ReturnNone {
			return nil, nil
		}
		return nil, ErrIncorrectCredentials
	}
}

func (r *IdentityResolver) lookup(set StoreSet, q ResolveQuery, opts ResolveOptions) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	switch {
	case q.UUID != "":
		user, err = set.Users.FindByUUID(q.UUID)
	case q.ID != 0:
		user, err = set.Users.FindByID(q.ID)
	case q.Username != "":
		user, err = set.Users.FindByUsername(q.Username, q.GroupID)
	default:
		return nil, errors.New("resolve query needs an id, uuid or username")
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if opts.AssertNotDeactivated && user.Deactivated {
		return nil, ErrIncorrectCredentials
	}
	if opts.AssertRefreshToken != "" {
		if user.RefreshToken == nil || *user.RefreshToken != opts.AssertRefreshToken {
			return nil, ErrIncorrectCredentials
		}
	}
	return user, nil
}
