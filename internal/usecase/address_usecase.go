package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"autoparts/internal/domain/model"
	"autoparts/internal/repository"
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

type AddressDTO struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	Label     string  `json:"label"`
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Line1     string  `json:"line1"`
	Line2     string  `json:"line2"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Pincode   string  `json:"pincode"`
	IsDefault bool    `json:"is_default"`
	Formatted string  `json:"formatted"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

// 作成・更新で同じ形
type AddressRequest struct {
	Label     string `json:"label"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"is_default"`
}

type AddressUsecase struct {
	addresses repository.AddressRepository
	clock     Clock
}

func NewAddressUsecase(addresses repository.AddressRepository, clock Clock) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, clock: clock}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, unauthorized()
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, dbError(err)
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, req AddressRequest) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, unauthorized()
	}
	req = trimAddressRequest(req)
	if err := validateAddress(req); err != nil {
		return AddressDTO{}, err
	}

	now := u.clock.Now()
	created, err := u.addresses.Create(ctx, model.Address{
		UserID:    userID,
		Label:     req.Label,
		Name:      req.Name,
		Phone:     req.Phone,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return AddressDTO{}, dbError(err)
	}

	//最初の住所は自動でデフォルト
	if req.IsDefault || u.isOnlyAddress(ctx, userID) {
		if err := u.addresses.SetDefault(ctx, userID, created.ID); err != nil {
			return AddressDTO{}, dbError(err)
		}
		created.IsDefault = true
	}

	return toAddressDTO(&created), nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, req AddressRequest) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}
	req = trimAddressRequest(req)
	if err := validateAddress(req); err != nil {
		return err
	}

	err := u.addresses.Update(ctx, model.Address{
		ID:        addressID,
		Label:     req.Label,
		Name:      req.Name,
		Phone:     req.Phone,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		UpdatedAt: u.clock.Now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("address not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}

	err := u.addresses.Delete(ctx, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("address not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if err := u.checkOwner(ctx, userID, addressID); err != nil {
		return err
	}

	//user内でdefaultは1つ
	err := u.addresses.SetDefault(ctx, userID, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("address not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}

// 他人の住所は404
func (u *AddressUsecase) checkOwner(ctx context.Context, userID, addressID int64) error {
	if userID <= 0 {
		return unauthorized()
	}
	if addressID <= 0 {
		return badRequest("invalid id")
	}
	owned, err := u.addresses.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		return dbError(err)
	}
	if !owned {
		return notFound("address not found")
	}
	return nil
}

func (u *AddressUsecase) isOnlyAddress(ctx context.Context, userID int64) bool {
	list, err := u.addresses.ListByUserID(ctx, userID)
	return err == nil && len(list) == 1
}

func trimAddressRequest(req AddressRequest) AddressRequest {
	req.Label = strings.TrimSpace(req.Label)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Line1 = strings.TrimSpace(req.Line1)
	req.Line2 = strings.TrimSpace(req.Line2)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.TrimSpace(req.State)
	req.Pincode = strings.TrimSpace(req.Pincode)
	return req
}

func validateAddress(req AddressRequest) error {
	if req.Name == "" || req.Line1 == "" || req.City == "" || req.State == "" {
		return badRequest("name, line1, city and state are required")
	}
	if !pincodePattern.MatchString(req.Pincode) {
		return badRequest("pincode must be 6 digits")
	}
	return nil
}

func toAddressDTO(a *model.Address) AddressDTO {
	dto := AddressDTO{
		ID:        a.ID,
		UserID:    a.UserID,
		Label:     a.Label,
		Name:      a.Name,
		Phone:     a.Phone,
		Line1:     a.Line1,
		Line2:     a.Line2,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		IsDefault: a.IsDefault,
		Formatted: a.Format(),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	t := a.UpdatedAt.Format(time.RFC3339)
	dto.UpdatedAt = &t
	return dto
}
