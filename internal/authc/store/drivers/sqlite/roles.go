package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/domain"
)

type rolesRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	var (
		role                 domain.Role
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE name = ?`, name,
	).Scan(&role.ID, &role.Name, &createdAt, &updatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.CreatedAt = fromNanos(createdAt)
	role.UpdatedAt = fromNanos(updatedAt)

	role.Permissions, err = r.rolePermissions(ctx, role.ID)
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

// CreateRole inserts the role and its permissions. Callers wanting both to
// land atomically run it inside WithTx.
func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := toNanos(r.now())
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		role.ID, role.Name, now, now,
	); err != nil {
		return mapConstraint(err)
	}

	for _, perm := range role.Permissions {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_permissions (role_id, permission) VALUES (?, ?)`,
			role.ID, perm,
		); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *rolesRepo) ListRoleMembers(ctx context.Context, roleID string) ([]string, error) {
	return r.strings(ctx, `
		SELECT a.username
		FROM accounts a
		JOIN account_roles ar ON ar.account_id = a.id
		WHERE ar.role_id = ?
		ORDER BY a.username`, roleID)
}

func (r *rolesRepo) AssignRole(ctx context.Context, accountID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_roles (account_id, role_id) VALUES (?, ?)`, accountID, roleID)
	return mapConstraint(err)
}

func (r *rolesRepo) RevokeRole(ctx context.Context, accountID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM account_roles WHERE account_id = ? AND role_id = ?`, accountID, roleID)
	return err
}

func (r *rolesRepo) ListAccountRoles(ctx context.Context, accountID string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at, r.updated_at
		FROM roles r
		JOIN account_roles ar ON ar.role_id = r.id
		WHERE ar.account_id = ?
		ORDER BY r.name`, accountID)
	if err != nil {
		return nil, err
	}

	var roles []domain.Role
	for rows.Next() {
		var (
			role                 domain.Role
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&role.ID, &role.Name, &createdAt, &updatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		role.CreatedAt = fromNanos(createdAt)
		role.UpdatedAt = fromNanos(updatedAt)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// release the connection before the per-role permission queries
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range roles {
		roles[i].Permissions, err = r.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (r *rolesRepo) GrantPermission(ctx context.Context, accountID, permission string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_permissions (account_id, permission) VALUES (?, ?)`,
		accountID, permission)
	return mapConstraint(err)
}

func (r *rolesRepo) ListAccountPermissions(ctx context.Context, accountID string) ([]string, error) {
	return r.strings(ctx,
		`SELECT permission FROM account_permissions WHERE account_id = ? ORDER BY permission`, accountID)
}

func (r *rolesRepo) rolePermissions(ctx context.Context, roleID string) ([]string, error) {
	return r.strings(ctx,
		`SELECT permission FROM role_permissions WHERE role_id = ? ORDER BY permission`, roleID)
}

func (r *rolesRepo) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
