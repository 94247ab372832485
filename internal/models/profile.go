package models

import "time"

// Profile is the single role-profile row attached to an approved account.
// The kind discriminant replaces the historical per-role tables; a UNIQUE
// constraint on account_id enforces the one-profile-per-account invariant
// at the schema level.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Kind      Role      `db:"kind" json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
