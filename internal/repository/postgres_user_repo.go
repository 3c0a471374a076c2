package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/autosmm/internal/model"
)

// PostgresUserRepo はusersテーブルのリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID はユーザーを1件返す。UUIDとして不正なIDも「存在しない」扱い。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}

	var (
		u    model.User
		plan string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, plan, created_at, updated_at
		 FROM users
		 WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &plan, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows), isInvalidTextRepresentation(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	u.Plan = model.ParsePlan(plan)
	return &u, nil
}

// CreateWithIdentity はuserとidentityを同時に登録する。
// プラン未指定なら無料プランで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, plan, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			user.ID, user.Email, user.Name, string(user.Plan), user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			identity.ID, user.ID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
		); err != nil {
			return fmt.Errorf("identityの登録に失敗しました: %w", err)
		}
		return nil
	})
}

// UpdatePlan は契約プランを変更する。未知のプラン名は受け付けない。
func (r *PostgresUserRepo) UpdatePlan(ctx context.Context, id string, plan model.Plan) error {
	if model.ParsePlan(string(plan)) != plan {
		return fmt.Errorf("未知のプランです: %q", plan)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET plan = $2, updated_at = now() WHERE id = $1`,
		id, string(plan),
	)
	if err != nil {
		return fmt.Errorf("プランの更新に失敗しました: %w", err)
	}
	return expectOneRow(result, "user", id)
}

// DeleteByID はユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	return expectOneRow(result, "user", id)
}

// inTx はfnをトランザクション内で実行し、fnがエラーを返したらロールバックする。
func (r *PostgresUserRepo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// expectOneRow は対象行が無かった場合にエラーを返す。
func expectOneRow(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
