// Package account orchestrates credential onboarding.
//
// Signup must create a credential, a profile, and the email's uniqueness
// claim across two tables that only partially share a transaction: the claim
// and the credential commit atomically, but the profile insert is a separate
// write. The gap is handled as a saga with one compensating step - a failed
// profile insert deletes the just-committed credential and claim, best
// effort. Email uniqueness itself never depends on the racy pre-check; the
// conditional claim inside the transaction is the guarantee, and a lost race
// surfaces as a validation error just like the pre-check would.
package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/picstream/picstream/apperr"
	"github.com/picstream/picstream/store"
	"github.com/picstream/picstream/unique"
)

// ErrNotFound is returned by lookups when no matching account exists.
var ErrNotFound = errors.New("account: not found")

// emailIndex is the GSI on the credentials table keyed by Email.
const emailIndex = "EmailIndex"

// Both the credentials and profiles tables are keyed by UserId.
const (
	userExistsCondition    = "attribute_exists(UserId)"
	userNotExistsCondition = "attribute_not_exists(UserId)"
)

// Config holds configuration for the account service.
type Config struct {
	// CredentialsTable is the credentials table name.
	// Default: "user_credentials"
	CredentialsTable string

	// ProfilesTable is the profiles table name. Default: "users"
	ProfilesTable string

	// UniqueTable is the unique-values table name. Default: "unique_values"
	UniqueTable string
}

func (c *Config) validate() {
	if c.CredentialsTable == "" {
		c.CredentialsTable = "user_credentials"
	}
	if c.ProfilesTable == "" {
		c.ProfilesTable = "users"
	}
	if c.UniqueTable == "" {
		c.UniqueTable = "unique_values"
	}
}

// SignupRequest carries the fields required to onboard a user.
type SignupRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Service is the credential onboarding manager.
type Service struct {
	store  *store.Client
	index  *unique.Index
	hasher Hasher
	config Config
	logger *slog.Logger
}

// NewService creates an account Service.
func NewService(st *store.Client, hasher Hasher, config Config, logger *slog.Logger) *Service {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		index:  unique.NewIndex(config.UniqueTable),
		hasher: hasher,
		config: config,
		logger: logger,
	}
}

// Signup validates the request, atomically claims the email and inserts the
// credential, then inserts the profile. A profile insert failure rolls the
// credential and claim back; rollback failure is logged, never raised, and
// never masks the original error.
func (s *Service) Signup(ctx context.Context, req SignupRequest, role Role) (*Profile, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return nil, apperr.New(apperr.Validation, "missing required fields")
	}
	if !validEmail(req.Email) {
		return nil, apperr.New(apperr.Validation, "invalid email address")
	}

	// Fast path for a precise error message; the conditional claim in the
	// transaction below is what actually guarantees uniqueness.
	claimed, err := s.index.IsClaimed(ctx, s.store, req.Email, unique.DomainEmail)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "check email", err)
	}
	if claimed {
		return nil, apperr.New(apperr.Validation, "email address already exists")
	}

	if !validPassword(req.Password) {
		return nil, apperr.New(apperr.Validation, passwordRequirements)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "hash password", err)
	}

	userID := uuid.NewString()
	now := time.Now().UTC()

	credItem, err := marshalCredential(&CredentialRecord{
		UserID:   userID,
		Email:    req.Email,
		Password: hash,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "encode credential", err)
	}

	err = s.store.Transact(ctx,
		s.index.Claim(req.Email, unique.DomainEmail),
		store.PutOp(s.config.CredentialsTable, credItem, userNotExistsCondition),
	)
	if err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			// A concurrent signup won the race for this email.
			return nil, apperr.New(apperr.Validation, "email address already exists")
		}
		return nil, apperr.Wrap(apperr.Database, "insert credentials", err)
	}

	profile := &ProfileRecord{
		UserID:    userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleID:    int(role),
		CreatedAt: now.Format(time.RFC3339),
	}
	if err := s.insertProfile(ctx, profile); err != nil {
		s.rollbackCredential(ctx, userID, req.Email)
		return nil, apperr.Wrap(apperr.Database, "insert profile", err)
	}

	return buildProfile(profile), nil
}

// FindCredentialByEmail looks the credential up through the email index.
// Returns ErrNotFound when no account uses the email; an ambiguous match is
// treated the same way after logging, since acting on either row would be a
// guess.
func (s *Service) FindCredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	item, err := s.store.QueryOne(ctx, store.QueryInput{
		Table:        s.config.CredentialsTable,
		Index:        emailIndex,
		KeyCondition: "Email = :email",
		Values:       stringValue(":email", email),
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrAmbiguous):
		s.logger.Error("multiple credentials share email", "email", email)
		return nil, ErrNotFound
	case err != nil:
		return nil, apperr.Wrap(apperr.Database, "find credentials by email", err)
	}

	record, err := unmarshalCredential(item)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "read credentials", err)
	}
	return &Credential{
		UserID:       record.UserID,
		Email:        record.Email,
		PasswordHash: record.Password,
	}, nil
}

// FindProfile returns the profile for userID, or ErrNotFound.
func (s *Service) FindProfile(ctx context.Context, userID string) (*Profile, error) {
	item, err := s.store.Get(ctx, s.config.ProfilesTable, profileKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "get profile", err)
	}

	var record ProfileRecord
	if uerr := unmarshalProfile(item, &record); uerr != nil {
		return nil, apperr.Wrap(apperr.Database, "read profile", uerr)
	}
	return buildProfile(&record), nil
}

// UpdateEmail moves the account to a new email address. The old claim's
// release, the new claim, and the credential overwrite commit as one
// transaction, ordered delete-claim, insert-claim, put-credential: an abort
// leaves the old claim intact rather than orphaning it.
func (s *Service) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	if !validEmail(newEmail) {
		return apperr.New(apperr.Validation, "invalid email address")
	}

	current, err := s.getCredential(ctx, userID)
	if err != nil {
		return err
	}
	if current.Email == newEmail {
		return nil
	}

	credItem, err := marshalCredential(&CredentialRecord{
		UserID:   userID,
		Email:    newEmail,
		Password: current.Password,
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encode credential", err)
	}

	err = s.store.Transact(ctx,
		s.index.Release(current.Email, unique.DomainEmail),
		s.index.Claim(newEmail, unique.DomainEmail),
		store.PutOp(s.config.CredentialsTable, credItem, userExistsCondition),
	)
	if err != nil {
		var txErr *store.TxConditionError
		if errors.As(err, &txErr) {
			if txErr.Index == 1 {
				return apperr.New(apperr.Validation, "email address already exists")
			}
			// The credential row vanished between the read and the
			// transaction.
			return apperr.New(apperr.Validation, "unknown user")
		}
		return apperr.Wrap(apperr.Database, "update credentials", err)
	}
	return nil
}

// DeleteAccount removes the credential and releases its email claim
// atomically. The profile row is left in place, matching the onboarding
// design where profiles are only ever deleted as signup compensation.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	current, err := s.getCredential(ctx, userID)
	if err != nil {
		return err
	}

	err = s.store.Transact(ctx,
		s.index.Release(current.Email, unique.DomainEmail),
		store.DeleteOp(s.config.CredentialsTable, credentialKey(userID), ""),
	)
	if err != nil {
		return apperr.Wrap(apperr.Database, "delete credentials", err)
	}
	return nil
}

func (s *Service) getCredential(ctx context.Context, userID string) (*CredentialRecord, error) {
	item, err := s.store.Get(ctx, s.config.CredentialsTable, credentialKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.Validation, "unknown user")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "get credentials", err)
	}
	return unmarshalCredential(item)
}

func (s *Service) insertProfile(ctx context.Context, record *ProfileRecord) error {
	item, err := marshalProfileRecord(record)
	if err != nil {
		return err
	}
	return s.store.PutConditional(ctx, s.config.ProfilesTable, item, userNotExistsCondition)
}

// rollbackCredential undoes the signup transaction after a failed profile
// insert. Best effort: a failure here leaves an orphaned credential behind
// and is only logged.
func (s *Service) rollbackCredential(ctx context.Context, userID, email string) {
	s.logger.Debug("rolling back credentials after profile insert failure",
		"userID", userID,
	)
	err := s.store.Transact(ctx,
		s.index.Release(email, unique.DomainEmail),
		store.DeleteOp(s.config.CredentialsTable, credentialKey(userID), ""),
	)
	if err != nil {
		s.logger.Warn("failed to roll back credentials",
			"userID", userID,
			"error", err,
		)
	}
}
