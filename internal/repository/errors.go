package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反（メール/電話/SKUの重複など）
	ErrDuplicate = errors.New("duplicate")
)
