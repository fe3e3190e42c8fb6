package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wdbm/blocktogether/internal/types/account"
)

type AccountService struct {
	db *pgxpool.Pool
}

func NewAccountService(db *pgxpool.Pool) *AccountService {
	return &AccountService{db: db}
}

// AccountWithSuppressions loads a source account together with its
// suppression set (previously unblocked sink uids) and registered devices.
func (s *AccountService) AccountWithSuppressions(ctx context.Context, uid string) (*account.Account, error) {
	query := `
	SELECT uid, screen_name, access_token, access_token_secret, created_at, updated_at
	FROM accounts
	WHERE uid = $1
	`

	acct := &account.Account{}
	err := s.db.QueryRow(ctx, query, uid).Scan(
		&acct.UID,
		&acct.ScreenName,
		&acct.Credentials.AccessToken,
		&acct.Credentials.AccessTokenSecret,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s not found", uid)
		}
		return nil, fmt.Errorf("failed to load account %s: %w", uid, err)
	}

	acct.Suppressions = map[string]bool{}
	rows, err := s.db.Query(ctx, `SELECT sink_uid FROM unblocks WHERE account_uid = $1`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load suppressions for %s: %w", uid, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sinkUID string
		if err := rows.Scan(&sinkUID); err != nil {
			return nil, fmt.Errorf("failed to scan suppression row: %w", err)
		}
		acct.Suppressions[sinkUID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tokenRows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE account_uid = $1`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens for %s: %w", uid, err)
	}
	defer tokenRows.Close()

	for tokenRows.Next() {
		var t account.DeviceToken
		if err := tokenRows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token row: %w", err)
		}
		acct.DeviceTokens = append(acct.DeviceTokens, t)
	}

	return acct, tokenRows.Err()
}

// RegisterDevice stores an FCM device token for batch-complete pushes.
func (s *AccountService) RegisterDevice(ctx context.Context, accountUID, token, platform string) error {
	query := `
	INSERT INTO device_tokens (account_uid, token, platform, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (account_uid, token) DO UPDATE SET platform = EXCLUDED.platform
	`

	_, err := s.db.Exec(ctx, query, accountUID, token, platform, time.Now())
	if err != nil {
		return fmt.Errorf("failed to register device for %s: %w", accountUID, err)
	}

	return nil
}
