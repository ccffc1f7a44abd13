package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 電話番号OTPログインのユーザーはメール/パスワードを持たないことがある。
// そのため email / phone は空でないときだけ一意。
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName string `gorm:"type:varchar(255);not null;default:''" json:"full_name"`
	Email    string `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_users_email,where:email <> ''" json:"email"`
	Phone    string `gorm:"type:varchar(20);not null;default:'';uniqueIndex:idx_users_phone,where:phone <> ''" json:"phone"`
	Location string `gorm:"type:varchar(255);not null;default:''" json:"location"`
	Address  string `gorm:"type:text;not null;default:''" json:"address"`

	PasswordHash string `gorm:"column:password_hash;not null;default:''" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`

	//ログインOTP（bcryptハッシュ）
	OtpHash      string     `gorm:"type:varchar(255);not null;default:''" json:"-"`
	OtpExpiresAt *time.Time `json:"-"`
	OtpAttempts  int        `gorm:"not null;default:0" json:"-"`

	EmailConfirmed        bool       `gorm:"not null;default:false" json:"email_confirmed"`
	EmailConfirmTokenHash string     `gorm:"type:varchar(64);not null;default:'';index" json:"-"`
	EmailConfirmExpiresAt *time.Time `json:"-"`

	ResetTokenHash      string     `gorm:"type:varchar(64);not null;default:''" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	TokenVersion int        `gorm:"not null;default:0" json:"-"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
