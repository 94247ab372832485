package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elevatedtutors/tutors-api/internal/models"
)

// ErrUnknownRole is returned when a workflow references a role name that is
// not present in the roles catalog.
var ErrUnknownRole = errors.New("unknown role")

// AccountRepository provides database access for accounts, role memberships,
// profiles, refresh tokens and the audit trail.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, first_name, surname, is_approved, created_at, updated_at`

// FindByEmail returns an account by email address.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 LIMIT 1`, accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// RolesFor returns the role memberships of an account.
func (r *AccountRepository) RolesFor(ctx context.Context, accountID string) ([]models.Role, error) {
	const query = `SELECT role FROM account_roles WHERE account_id = $1 ORDER BY role`
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query, accountID); err != nil {
		return nil, fmt.Errorf("load account roles: %w", err)
	}
	return roles, nil
}

// ProfilesFor returns all profile rows for an account. The schema allows at
// most one, but callers verifying workflow outcomes read the full set.
func (r *AccountRepository) ProfilesFor(ctx context.Context, accountID string) ([]models.Profile, error) {
	const query = `SELECT id, account_id, kind, created_at FROM profiles WHERE account_id = $1`
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, accountID); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return profiles, nil
}

// RoleExists reports whether the role catalog contains the given name.
func (r *AccountRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("check role catalog: %w", err)
	}
	return exists, nil
}

// List returns accounts based on filters with total count. Role memberships
// are loaded for the returned page.
func (r *AccountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	baseQuery := `FROM accounts WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Approved != nil {
		conditions = append(conditions, fmt.Sprintf("is_approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT account_id FROM account_roles WHERE role = $%d)", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name || ' ' || surname) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"surname":    true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", accountColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	if err := r.attachRoles(ctx, accounts); err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

func (r *AccountRepository) attachRoles(ctx context.Context, accounts []models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	query, args, err := sqlx.In(`SELECT account_id, role FROM account_roles WHERE account_id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build membership query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []struct {
		AccountID string      `db:"account_id"`
		Role      models.Role `db:"role"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}

	byAccount := make(map[string][]models.Role, len(accounts))
	for _, row := range rows {
		byAccount[row.AccountID] = append(byAccount[row.AccountID], row.Role)
	}
	for i := range accounts {
		accounts[i].Roles = byAccount[accounts[i].ID]
	}
	return nil
}

// Create inserts a new account and returns the stored record.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO accounts (id, email, password_hash, first_name, surname, is_approved, created_at, updated_at)
	VALUES (:id, :email, :password_hash, :first_name, :surname, :is_approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Approve marks the account approved and assigns the role atomically. The
// role is validated against the catalog before any write so an unknown role
// mutates nothing. Re-approving with a role the account already holds inserts
// no second membership or profile row.
func (r *AccountRepository) Approve(ctx context.Context, accountID string, role models.Role) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked struct {
		ID         string `db:"id"`
		IsApproved bool   `db:"is_approved"`
	}
	const lockQuery = `SELECT id, is_approved FROM accounts WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockQuery, accountID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock account: %w", err)
	}

	var roleExists bool
	if err = tx.GetContext(ctx, &roleExists, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, role); err != nil {
		return fmt.Errorf("check role catalog: %w", err)
	}
	if !roleExists {
		err = ErrUnknownRole
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET is_approved = TRUE, updated_at = $2 WHERE id = $1`, accountID, time.Now().UTC()); err != nil {
		return fmt.Errorf("approve account: %w", err)
	}

	var hasMembership bool
	if err = tx.GetContext(ctx, &hasMembership, `SELECT EXISTS (SELECT 1 FROM account_roles WHERE account_id = $1 AND role = $2)`, accountID, role); err != nil {
		return fmt.Errorf("check membership: %w", err)
	}

	if !hasMembership {
		if _, err = tx.ExecContext(ctx, `INSERT INTO account_roles (account_id, role) VALUES ($1, $2)`, accountID, role); err != nil {
			return fmt.Errorf("add membership: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO profiles (id, account_id, kind, created_at) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), accountID, role, time.Now().UTC()); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit approval: %w", err)
	}
	return nil
}

// ChangeRole removes every membership and profile row for the account and,
// when newRole is non-empty, assigns the new role. The account is re-approved
// unconditionally. Deleting all profile rows tolerates historically
// inconsistent data holding more than one.
func (r *AccountRepository) ChangeRole(ctx context.Context, accountID string, newRole models.Role) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role change transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock account: %w", err)
	}

	if newRole != "" {
		var roleExists bool
		if err = tx.GetContext(ctx, &roleExists, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, newRole); err != nil {
			return fmt.Errorf("check role catalog: %w", err)
		}
		if !roleExists {
			err = ErrUnknownRole
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM account_roles WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM profiles WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}

	if newRole != "" {
		if _, err = tx.ExecContext(ctx, `INSERT INTO account_roles (account_id, role) VALUES ($1, $2)`, accountID, newRole); err != nil {
			return fmt.Errorf("add membership: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO profiles (id, account_id, kind, created_at) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), accountID, newRole, time.Now().UTC()); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET is_approved = TRUE, updated_at = $2 WHERE id = $1`, accountID, time.Now().UTC()); err != nil {
		return fmt.Errorf("re-approve account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit role change: %w", err)
	}
	return nil
}

// Delete removes the account together with its memberships, profiles and all
// dependent domain rows. Sessions and submissions referencing the account are
// deleted and subject references are cleared so the identity row can go last.
func (r *AccountRepository) Delete(ctx context.Context, accountID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock account: %w", err)
	}

	steps := []struct {
		name  string
		query string
	}{
		{"delete sessions", `DELETE FROM sessions WHERE student_id = $1 OR tutor_id = $1`},
		{"delete submission files", `DELETE FROM submission_files WHERE submission_id IN (SELECT id FROM submissions WHERE student_id = $1)`},
		{"delete submissions", `DELETE FROM submissions WHERE student_id = $1`},
		{"detach tutored subjects", `UPDATE subjects SET tutor_id = NULL WHERE tutor_id = $1`},
		{"detach studied subjects", `UPDATE subjects SET student_id = NULL WHERE student_id = $1`},
		{"clear memberships", `DELETE FROM account_roles WHERE account_id = $1`},
		{"clear profiles", `DELETE FROM profiles WHERE account_id = $1`},
		{"revoke refresh tokens", `DELETE FROM refresh_tokens WHERE account_id = $1`},
		{"delete account", `DELETE FROM accounts WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step.query, accountID); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *AccountRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
	VALUES (:id, :account_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *AccountRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, account_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *AccountRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAccountRefreshTokens revokes all refresh tokens for an account.
func (r *AccountRepository) RevokeAccountRefreshTokens(ctx context.Context, accountID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE account_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, accountID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke account refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *AccountRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, account_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (:id, :account_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
