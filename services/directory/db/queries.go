package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUser = `
INSERT INTO users (id) VALUES (?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) CreateUser(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, createUser, id)
	return err
}

const setUserCredentials = `
INSERT INTO users (id, credentials) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET credentials = excluded.credentials
`

type SetUserCredentialsParams struct {
	ID          string
	Credentials string
}

func (q *Queries) SetUserCredentials(ctx context.Context, arg SetUserCredentialsParams) error {
	_, err := q.db.ExecContext(ctx, setUserCredentials, arg.ID, arg.Credentials)
	return err
}

const getUserCredentials = `
SELECT credentials FROM users WHERE id = ?
`

func (q *Queries) GetUserCredentials(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRowContext(ctx, getUserCredentials, id)
	var credentials string
	err := row.Scan(&credentials)
	return credentials, err
}

const createGroup = `
INSERT INTO groups (name, verified) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET verified = max(verified, excluded.verified)
`

type CreateGroupParams struct {
	Name     string
	Verified bool
}

func (q *Queries) CreateGroup(ctx context.Context, arg CreateGroupParams) error {
	_, err := q.db.ExecContext(ctx, createGroup, arg.Name, arg.Verified)
	return err
}

const createMembership = `
INSERT INTO users_groups (user_id, group_name, verified) VALUES (?, ?, ?)
ON CONFLICT (user_id, group_name) DO UPDATE SET verified = max(verified, excluded.verified)
`

type CreateMembershipParams struct {
	UserID    string
	GroupName string
	Verified  bool
}

func (q *Queries) CreateMembership(ctx context.Context, arg CreateMembershipParams) error {
	_, err := q.db.ExecContext(ctx, createMembership, arg.UserID, arg.GroupName, arg.Verified)
	return err
}

const getUserMemberships = `
SELECT ug.group_name, ug.verified, g.verified
FROM users_groups ug
JOIN groups g ON g.name = ug.group_name
WHERE ug.user_id = ?
ORDER BY ug.group_name
`

type GetUserMembershipsRow struct {
	GroupName     string
	Verified      bool
	GroupVerified bool
}

func (q *Queries) GetUserMemberships(ctx context.Context, userID string) ([]GetUserMembershipsRow, error) {
	rows, err := q.db.QueryContext(ctx, getUserMemberships, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetUserMembershipsRow
	for rows.Next() {
		var i GetUserMembershipsRow
		if err := rows.Scan(&i.GroupName, &i.Verified, &i.GroupVerified); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getGroupMembers = `
SELECT ug.user_id, u.credentials != ''
FROM users_groups ug
JOIN users u ON u.id = ug.user_id
JOIN groups g ON g.name = ug.group_name
WHERE ug.group_name = ? AND ug.verified = 1 AND g.verified = 1
ORDER BY ug.user_id
`

type GetGroupMembersRow struct {
	UserID       string
	Credentialed bool
}

func (q *Queries) GetGroupMembers(ctx context.Context, groupName string) ([]GetGroupMembersRow, error) {
	rows, err := q.db.QueryContext(ctx, getGroupMembers, groupName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetGroupMembersRow
	for rows.Next() {
		var i GetGroupMembersRow
		if err := rows.Scan(&i.UserID, &i.Credentialed); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
