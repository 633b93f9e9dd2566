package mock

import (
	context "context"
	reflect "reflect"

	models "github.com/smartvendoplus/smartvendo/kiosk/database/models"
	gomock "go.uber.org/mock/gomock"
)

// MockAccounts is a mock of Accounts interface.
type MockAccounts struct {
	ctrl     *gomock.Controller
	recorder *MockAccountsMockRecorder
	isgomock struct{}
}

// MockAccountsMockRecorder is the mock recorder for MockAccounts.
type MockAccountsMockRecorder struct {
	mock *MockAccounts
}

// NewMockAccounts creates a new mock instance.
func NewMockAccounts(ctrl *gomock.Controller) *MockAccounts {
	mock := &MockAccounts{ctrl: ctrl}
	mock.recorder = &MockAccountsMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAccounts) EXPECT() *MockAccountsMockRecorder {
	return m.recorder
}

// GetByCardUID mocks base method.
func (m *MockAccounts) GetByCardUID(ctx context.Context, cardUID string) (*models.Account, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByCardUID", ctx, cardUID)
	ret0, _ := ret[0].(*models.Account)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByCardUID indicates an expected call of GetByCardUID.
func (mr *MockAccountsMockRecorder) GetByCardUID(ctx, cardUID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByCardUID", reflect.TypeOf((*MockAccounts)(nil).GetByCardUID), ctx, cardUID)
}

// TouchLastSeen mocks base method.
func (m *MockAccounts) TouchLastSeen(ctx context.Context, accountID int64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TouchLastSeen", ctx, accountID)
	ret0, _ := ret[0].(error)
	return ret0
}

// TouchLastSeen indicates an expected call of TouchLastSeen.
func (mr *MockAccountsMockRecorder) TouchLastSeen(ctx, accountID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TouchLastSeen", reflect.TypeOf((*MockAccounts)(nil).TouchLastSeen), ctx, accountID)
}
