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

// =====================
// Mock: AuditLogRepository
// =====================

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// List
// =====================

func TestAdminOrderUsecase_List_InvalidStatus(t *testing.T) {
	tx := new(TxManagerMock)

	uc := usecase.NewAdminOrderUsecase(tx)

	outs, err := uc.List(context.Background(), repo.AdminOrderListFilter{
		Page:   1,
		Limit:  20,
		Status: "Teleported",
	})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid status")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

// =====================
// UpdateStatus
// =====================

func TestAdminOrderUsecase_UpdateStatus_InvalidStatus(t *testing.T) {
	tx := new(TxManagerMock)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), 999, 50, usecase.AdminUpdateOrderStatusInput{
		Status: "NotAStatus",
	})
	assertErrContains(t, err, "invalid status")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

// 終端ステータスからは変更できない
func TestAdminOrderUsecase_UpdateStatus_DeliveredIsTerminal(t *testing.T) {
	tx := new(TxManagerMock)
	audit := new(AuditRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(50)).Return(model.Order{
		ID:     50,
		Status: model.OrderStatusDelivered,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), 999, 50, usecase.AdminUpdateOrderStatusInput{
		Status: string(model.OrderStatusProcessing),
	})
	assertErrContains(t, err, "cannot change delivered order")

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_CancelledIsTerminal(t *testing.T) {
	tx := new(TxManagerMock)
	audit := new(AuditRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(50)).Return(model.Order{
		ID:     50,
		Status: model.OrderStatusCancelled,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), 999, 50, usecase.AdminUpdateOrderStatusInput{
		Status: string(model.OrderStatusShipped),
	})
	assertErrContains(t, err, "cannot change cancelled order")

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// すでに同じステータスなら何もしないで成功
func TestAdminOrderUsecase_UpdateStatus_SameStatus_NoOp(t *testing.T) {
	tx := new(TxManagerMock)
	audit := new(AuditRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(50)).Return(model.Order{
		ID:     50,
		Status: model.OrderStatusProcessing,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), 999, 50, usecase.AdminUpdateOrderStatusInput{
		Status: string(model.OrderStatusProcessing),
	})
	assert.NoError(t, err)

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 中間遷移は自由。更新と監査ログが同じトランザクションのrepo経由で走る。
func TestAdminOrderUsecase_UpdateStatus_NonTerminal_UpdatesAndAudits(t *testing.T) {
	adminID := int64(999)
	orderID := int64(50)

	tx := new(TxManagerMock)
	audit := new(AuditRepoMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, orderID).Return(model.Order{
		ID:     orderID,
		Status: model.OrderStatusPending,
	}, nil)
	ordersRepo.On("UpdateStatus", mock.Anything, orderID, model.OrderStatusShipped).Return(nil)

	audit.On("Create", mock.Anything, mock.MatchedBy(func(a model.AuditLog) bool {
		// CreatedAt は now なので見ない
		return a.ActorUserID == adminID &&
			a.Action == model.AuditActionUpdateOrderStatus &&
			a.ResourceType == model.AuditResourceOrder &&
			a.ResourceID == orderID &&
			a.BeforeJSON == `{"status":"Pending"}` &&
			a.AfterJSON == `{"status":"Shipped"}`
	})).Return(nil)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), adminID, orderID, usecase.AdminUpdateOrderStatusInput{
		Status: string(model.OrderStatusShipped),
	})
	assert.NoError(t, err)

	ordersRepo.AssertExpectations(t)
	audit.AssertExpectations(t)
	tx.AssertCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_NotFound(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(50)).Return(model.Order{}, repo.ErrNotFound)

	uc := usecase.NewAdminOrderUsecase(tx)

	err := uc.UpdateStatus(context.Background(), 999, 50, usecase.AdminUpdateOrderStatusInput{
		Status: string(model.OrderStatusShipped),
	})
	assertErrContains(t, err, "not found")
}
