package directory

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/services/directory/db"
	"lapelle-backend/services/schedule"
)

var tracer = otel.Tracer("services/directory")

// Service stores users, groups and memberships in sqlite and resolves
// portal credentials from signed blobs. It backs both the Directory and
// the CredentialSource sides of the schedule service.
type Service struct {
	db    *sql.DB
	qry   *db.Queries
	codec keychain.Codec
}

func NewService(database *sql.DB, codec keychain.Codec) Service {
	return Service{
		db:    database,
		qry:   db.New(database),
		codec: codec,
	}
}

func (s Service) UserGroups(ctx context.Context, userID string) ([]schedule.Membership, error) {
	ctx, span := tracer.Start(ctx, "UserGroups")
	defer span.End()

	rows, err := s.qry.GetUserMemberships(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	memberships := make([]schedule.Membership, len(rows))
	for i, r := range rows {
		memberships[i] = schedule.Membership{
			Group:         r.GroupName,
			Verified:      r.Verified,
			GroupVerified: r.GroupVerified,
		}
	}
	return memberships, nil
}

func (s Service) GroupMembers(ctx context.Context, groups []string) ([]schedule.GroupMembers, error) {
	ctx, span := tracer.Start(ctx, "GroupMembers")
	defer span.End()

	var out []schedule.GroupMembers
	for _, g := range groups {
		rows, err := s.qry.GetGroupMembers(ctx, g)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		members := make([]schedule.Member, len(rows))
		for i, r := range rows {
			members[i] = schedule.Member{
				UserID:       r.UserID,
				Credentialed: r.Credentialed,
			}
		}
		out = append(out, schedule.GroupMembers{Group: g, Members: members})
	}
	return out, nil
}

func (s Service) UpsertGroup(ctx context.Context, group string, verified bool) error {
	ctx, span := tracer.Start(ctx, "UpsertGroup")
	defer span.End()

	err := s.qry.CreateGroup(ctx, db.CreateGroupParams{
		Name:     group,
		Verified: verified,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s Service) UpsertMembership(ctx context.Context, userID, group string, verified bool) error {
	ctx, span := tracer.Start(ctx, "UpsertMembership")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	if err := txqry.CreateUser(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := txqry.CreateGroup(ctx, db.CreateGroupParams{Name: group}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = txqry.CreateMembership(ctx, db.CreateMembershipParams{
		UserID:    userID,
		GroupName: group,
		Verified:  verified,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Resolve returns the user's portal credentials, or zero credentials when
// the user is unknown or never linked an account.
func (s Service) Resolve(ctx context.Context, userID string) (keychain.Credentials, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()

	blob, err := s.qry.GetUserCredentials(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return keychain.Credentials{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return keychain.Credentials{}, err
	}

	creds, err := s.codec.Verify(blob)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return keychain.Credentials{}, err
	}
	return creds, nil
}

// SetCredentials signs and stores the user's portal credentials.
func (s Service) SetCredentials(ctx context.Context, userID string, creds keychain.Credentials) error {
	ctx, span := tracer.Start(ctx, "SetCredentials")
	defer span.End()

	blob, err := s.codec.Sign(creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = s.qry.SetUserCredentials(ctx, db.SetUserCredentialsParams{
		ID:          userID,
		Credentials: blob,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
