package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/autosmm/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用した外部IdP紐付けリポジトリ。
// identityの作成はユーザー登録と同一トランザクションで行うため、
// PostgresUserRepo.CreateWithIdentity が担う。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はログイン時に既存ユーザーを特定する。
// providerは大文字小文字を区別しない。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || providerUserID == "" {
		return nil, nil
	}

	var identity model.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT i.id, i.user_id, i.provider, i.provider_user_id, i.created_at
		 FROM identities i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.provider = $1 AND i.provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identityの取得に失敗しました: %w", err)
	}
	return &identity, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
