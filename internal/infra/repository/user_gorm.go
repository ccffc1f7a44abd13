package repository

import (
	"context"
	"strings"

	"autoparts/internal/domain/model"
	domainrepo "autoparts/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

// Create はユーザーを新規作成
func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	return mapErr(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userGormRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// emailでユーザーを1件取得
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, domainrepo.ErrNotFound
	}
	return r.findOne(ctx, "email = ?", email)
}

func (r *userGormRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	if phone == "" {
		return nil, domainrepo.ErrNotFound
	}
	return r.findOne(ctx, "phone = ?", phone)
}

func (r *userGormRepository) FindByEmailConfirmTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, domainrepo.ErrNotFound
	}
	return r.findOne(ctx, "email_confirm_token_hash = ?", tokenHash)
}

// IDでユーザーを1件取得
func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// ユーザーを更新。
func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	return mapErr(r.db.WithContext(ctx).Save(user).Error)
}

// token_versionを+1 します。
func (r *userGormRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1))

	if res.Error != nil {
		return res.Error
	}

	// 0件更新は「対象がない」
	if res.RowsAffected == 0 {
		return domainrepo.ErrNotFound
	}
	return nil
}

// 名前・メール・電話で部分一致検索
func (r *userGormRepository) List(ctx context.Context, f domainrepo.UserListFilter) ([]model.User, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 100, 20)

	q := r.db.WithContext(ctx).Model(&model.User{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("full_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.User{}, 0, err
	}

	var users []model.User
	if err := q.Order("id desc").Limit(f.Limit).Offset((f.Page - 1) * f.Limit).Find(&users).Error; err != nil {
		return []model.User{}, 0, err
	}
	return users, total, nil
}

// ユーザーと付随データ（トークン・カート・住所・チャット）を削除。注文は残す。
func (r *userGormRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.DeleteMany(ctx, []int64{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return domainrepo.ErrNotFound
	}
	return nil
}

func (r *userGormRepository) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id IN ?", ids).Delete(&model.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("cart_id IN (?)", tx.Model(&model.Cart{}).Select("id").Where("user_id IN ?", ids)).
			Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.Cart{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.Address{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
