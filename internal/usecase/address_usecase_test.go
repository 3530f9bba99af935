package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	addresses, _ := args.Get(0).([]model.Address)
	return addresses, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) Update(ctx context.Context, address model.Address) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *AddressRepoMock) Delete(ctx context.Context, addressID int64) error {
	args := m.Called(ctx, addressID)
	return args.Error(0)
}

func (m *AddressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *AddressRepoMock) SetDefault(ctx context.Context, userID, addressID int64) error {
	args := m.Called(ctx, userID, addressID)
	return args.Error(0)
}

func TestAddressUsecase_Create_MissingRequiredFields(t *testing.T) {
	addressRepo := new(AddressRepoMock)
	uc := usecase.NewAddressUsecase(addressRepo)

	inputs := []usecase.UpsertAddressInput{
		{Line1: "1-2-3", City: "Tokyo", State: "Tokyo", Pincode: "1000001"},
		{Name: "Taro", City: "Tokyo", State: "Tokyo", Pincode: "1000001"},
		{Name: "Taro", Line1: "1-2-3", State: "Tokyo", Pincode: "1000001"},
		{Name: "Taro", Line1: "1-2-3", City: "Tokyo", Pincode: "1000001"},
		{Name: "Taro", Line1: "1-2-3", City: "Tokyo", State: "Tokyo"},
	}

	for _, in := range inputs {
		_, err := uc.CreateAddress(context.Background(), 1, in)
		assert.Error(t, err, "input=%+v", in)
	}

	addressRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 最初の1件は自動でデフォルト
func TestAddressUsecase_Create_FirstAddressBecomesDefault(t *testing.T) {
	addressRepo := new(AddressRepoMock)

	addressRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.Address{}, nil)
	addressRepo.On("Create", mock.Anything, mock.MatchedBy(func(a model.Address) bool {
		return a.UserID == 1 && a.IsDefault
	})).Return(model.Address{ID: 5, UserID: 1, IsDefault: true}, nil)

	uc := usecase.NewAddressUsecase(addressRepo)

	created, err := uc.CreateAddress(context.Background(), 1, usecase.UpsertAddressInput{
		Name:    "Taro",
		Line1:   "1-2-3",
		City:    "Tokyo",
		State:   "Tokyo",
		Pincode: "1000001",
	})
	assert.NoError(t, err)
	assert.True(t, created.IsDefault)

	addressRepo.AssertExpectations(t)
}

func TestAddressUsecase_Create_SecondAddressNotDefault(t *testing.T) {
	addressRepo := new(AddressRepoMock)

	addressRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.Address{
		{ID: 5, UserID: 1, IsDefault: true},
	}, nil)
	addressRepo.On("Create", mock.Anything, mock.MatchedBy(func(a model.Address) bool {
		return !a.IsDefault
	})).Return(model.Address{ID: 6, UserID: 1}, nil)

	uc := usecase.NewAddressUsecase(addressRepo)

	_, err := uc.CreateAddress(context.Background(), 1, usecase.UpsertAddressInput{
		Name:    "Taro",
		Line1:   "4-5-6",
		City:    "Tokyo",
		State:   "Tokyo",
		Pincode: "1000002",
	})
	assert.NoError(t, err)

	addressRepo.AssertExpectations(t)
}

func TestAddressUsecase_Update_ForeignAddress_Forbidden(t *testing.T) {
	addressRepo := new(AddressRepoMock)

	addressRepo.On("FindByID", mock.Anything, int64(5)).Return(model.Address{
		ID:     5,
		UserID: 99,
	}, nil)

	uc := usecase.NewAddressUsecase(addressRepo)

	_, err := uc.UpdateAddress(context.Background(), 1, 5, usecase.UpsertAddressInput{
		Name:    "Taro",
		Line1:   "1-2-3",
		City:    "Tokyo",
		State:   "Tokyo",
		Pincode: "1000001",
	})
	assertErrContains(t, err, "forbidden")

	addressRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAddressUsecase_SetDefault_NotOwned_Forbidden(t *testing.T) {
	addressRepo := new(AddressRepoMock)

	addressRepo.On("IsOwnedByUser", mock.Anything, int64(5), int64(1)).Return(false, nil)

	uc := usecase.NewAddressUsecase(addressRepo)

	err := uc.SetDefaultAddress(context.Background(), 1, 5)
	assertErrContains(t, err, "forbidden")

	addressRepo.AssertNotCalled(t, "SetDefault", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddressUsecase_Delete_UnknownID_NotFound(t *testing.T) {
	addressRepo := new(AddressRepoMock)

	addressRepo.On("FindByID", mock.Anything, int64(5)).Return(model.Address{}, repo.ErrNotFound)

	uc := usecase.NewAddressUsecase(addressRepo)

	err := uc.DeleteAddress(context.Background(), 1, 5)
	assertErrContains(t, err, "not found")
}
