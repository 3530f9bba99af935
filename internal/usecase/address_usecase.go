package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AddressUsecase struct {
	addressRepo repo.AddressRepository
}

// DI
func NewAddressUsecase(addressRepo repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addressRepo: addressRepo}
}

type UpsertAddressInput struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

func (in *UpsertAddressInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if strings.TrimSpace(in.Line1) == "" {
		return NewHTTPError(http.StatusBadRequest, "line1 required")
	}
	if strings.TrimSpace(in.City) == "" {
		return NewHTTPError(http.StatusBadRequest, "city required")
	}
	if strings.TrimSpace(in.State) == "" {
		return NewHTTPError(http.StatusBadRequest, "state required")
	}
	if strings.TrimSpace(in.Pincode) == "" {
		return NewHTTPError(http.StatusBadRequest, "pincode required")
	}
	return nil
}

// 自分の住所一覧（デフォルトを先頭に）
func (u *AddressUsecase) ListMyAddresses(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return []model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	addresses, err := u.addressRepo.ListByUserID(ctx, userID)
	if err != nil {
		return []model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return addresses, nil
}

// 住所を追加する。最初の1件は自動でデフォルトになる。
func (u *AddressUsecase) CreateAddress(ctx context.Context, userID int64, in UpsertAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	existing, err := u.addressRepo.ListByUserID(ctx, userID)
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := time.Now()
	created, err := u.addressRepo.Create(ctx, model.Address{
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Line1:     strings.TrimSpace(in.Line1),
		Line2:     strings.TrimSpace(in.Line2),
		City:      strings.TrimSpace(in.City),
		State:     strings.TrimSpace(in.State),
		Pincode:   strings.TrimSpace(in.Pincode),
		Phone:     strings.TrimSpace(in.Phone),
		IsDefault: len(existing) == 0,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return created, nil
}

// 住所更新（所有チェックあり）
func (u *AddressUsecase) UpdateAddress(ctx context.Context, userID int64, addressID int64, in UpsertAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	current, err := u.addressRepo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Address{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//所有チェック
	if current.UserID != userID {
		return model.Address{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	current.Name = strings.TrimSpace(in.Name)
	current.Line1 = strings.TrimSpace(in.Line1)
	current.Line2 = strings.TrimSpace(in.Line2)
	current.City = strings.TrimSpace(in.City)
	current.State = strings.TrimSpace(in.State)
	current.Pincode = strings.TrimSpace(in.Pincode)
	current.Phone = strings.TrimSpace(in.Phone)
	current.UpdatedAt = time.Now()

	if err := u.addressRepo.Update(ctx, current); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Address{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return current, nil
}

// 住所削除（所有チェックあり）。
// 注文は住所IDを参照として持つだけなので削除自体は許可する。
func (u *AddressUsecase) DeleteAddress(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	current, err := u.addressRepo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if current.UserID != userID {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := u.addressRepo.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// デフォルト住所を切り替える。1ユーザーにつきデフォルトは常に1件。
func (u *AddressUsecase) SetDefaultAddress(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	owned, err := u.addressRepo.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !owned {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := u.addressRepo.SetDefault(ctx, userID, addressID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}
