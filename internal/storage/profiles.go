package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Profile is a user's plan and credit state.
type Profile struct {
	UserID                  string
	Email                   string
	SubscriptionTier        string
	CreditsBalance          int
	CreditsMonthlyAllowance int
	FirstItemPassUsed       bool
	HasSubscribed           bool
	CreditsResetAt          time.Time
	CreatedAt               time.Time
}

// LedgerEntry is one credit movement.
type LedgerEntry struct {
	ID           int64
	UserID       string
	Delta        int
	Operation    string
	Description  string
	BalanceAfter int
	CreatedAt    time.Time
}

var monthlyAllowances = map[string]int{
	"free":       3,
	"pro":        50,
	"business":   200,
	"scale":      600,
	"enterprise": 1500,
}

// MonthlyAllowance returns the credits granted each month on tier. Unknown
// tiers get the free allowance.
func MonthlyAllowance(tier string) int {
	if n, ok := monthlyAllowances[tier]; ok {
		return n
	}
	return monthlyAllowances["free"]
}

const profileColumns = `user_id, email, subscription_tier, credits_balance, credits_monthly_allowance,
	first_item_pass_used, has_subscribed, credits_reset_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var resetAt int64
	err := row.Scan(&p.UserID, &p.Email, &p.SubscriptionTier, &p.CreditsBalance, &p.CreditsMonthlyAllowance,
		&p.FirstItemPassUsed, &p.HasSubscribed, &resetAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.CreditsResetAt = time.Unix(resetAt, 0)
	return &p, nil
}

// EnsureProfile returns the user's profile, creating a free one with the
// free allowance on first sight.
func (s *SQLiteStore) EnsureProfile(userID, email string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	allowance := MonthlyAllowance("free")
	_, err := s.db.Exec(`
		INSERT INTO profiles (user_id, email, subscription_tier, credits_balance, credits_monthly_allowance, credits_reset_at, created_at)
		VALUES (?, ?, 'free', ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE profiles.email END
	`, userID, email, allowance, allowance, now.AddDate(0, 1, 0).Unix(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	p, err := scanProfile(s.db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = ?", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return p, nil
}

// GetProfile returns the profile or nil, nil if the user is unknown.
func (s *SQLiteStore) GetProfile(userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProfile(s.db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = ?", userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// SetTier moves the user to tier and tops the balance up to the tier's
// allowance.
func (s *SQLiteStore) SetTier(userID, tier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowance := MonthlyAllowance(tier)
	res, err := s.db.Exec(`
		UPDATE profiles SET
			subscription_tier = ?,
			credits_monthly_allowance = ?,
			credits_balance = MAX(credits_balance, ?),
			has_subscribed = CASE WHEN ? != 'free' THEN 1 ELSE has_subscribed END
		WHERE user_id = ?
	`, tier, allowance, allowance, tier, userID)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeductCredits atomically takes amount from the balance and records it in
// the ledger. It returns the new balance, or ErrInsufficientCredits without
// changing anything when the balance is too low.
func (s *SQLiteStore) DeductCredits(userID string, amount int, operation, description string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative deduction %d", amount)
	}
	return s.adjustCredits(userID, -amount, operation, description)
}

// AddCredits grants amount credits, e.g. after a credit pack purchase or a
// refund of a failed operation.
func (s *SQLiteStore) AddCredits(userID string, amount int, operation, description string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative grant %d", amount)
	}
	return s.adjustCredits(userID, amount, operation, description)
}

func (s *SQLiteStore) adjustCredits(userID string, delta int, operation, description string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE profiles SET credits_balance = credits_balance + ?
		WHERE user_id = ? AND credits_balance + ? >= 0
	`, delta, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	var balance int
	err = tx.QueryRow("SELECT credits_balance FROM profiles WHERE user_id = ?", userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return balance, ErrInsufficientCredits
	}

	if delta != 0 {
		_, err = tx.Exec(`
			INSERT INTO credit_ledger (user_id, delta, operation, description, balance_after, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, userID, delta, operation, description, balance, s.now())
		if err != nil {
			return 0, fmt.Errorf("failed to write ledger: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit change: %w", err)
	}
	return balance, nil
}

// MarkFirstItemPassUsed consumes the free first item pass.
func (s *SQLiteStore) MarkFirstItemPassUsed(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE profiles SET first_item_pass_used = 1 WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to mark first item pass used: %w", err)
	}
	return nil
}

// ResetMonthlyCredits restores the monthly allowance for every profile whose
// reset is due and schedules the next reset a month out. Purchased credits
// above the allowance are kept. It returns the number of profiles reset.
func (s *SQLiteStore) ResetMonthlyCredits(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO credit_ledger (user_id, delta, operation, description, balance_after, created_at)
		SELECT user_id, credits_monthly_allowance - credits_balance, 'monthly_reset', 'Monthly allowance', credits_monthly_allowance, ?
		FROM profiles
		WHERE credits_reset_at <= ? AND credits_balance < credits_monthly_allowance
	`, now, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to write reset ledger: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE profiles SET
			credits_balance = MAX(credits_balance, credits_monthly_allowance),
			credits_reset_at = ?
		WHERE credits_reset_at <= ?
	`, now.AddDate(0, 1, 0).Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit reset: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Ledger returns the user's most recent credit movements, newest first.
func (s *SQLiteStore) Ledger(userID string, limit int) ([]LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, user_id, delta, operation, description, balance_after, created_at
		FROM credit_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Operation, &e.Description, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
