package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
)

// memStore is an in-memory Store. RunInTx serializes transactions with one
// mutex and stages writes so a failed callback leaves nothing behind, which
// matches the commit-or-nothing contract the engine relies on.
type memStore struct {
	mu          sync.Mutex
	accounts    map[int64]models.Account
	rewards     map[int64]models.Reward
	deposits    []models.DepositRecord
	redemptions []models.RedemptionRecord
	nextID      int64

	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]models.Account),
		rewards:  make(map[int64]models.Reward),
		nextID:   1,
	}
}

func (s *memStore) addAccount(a models.Account) int64 {
	a.ID = s.nextID
	s.nextID++
	s.accounts[a.ID] = a
	return a.ID
}

func (s *memStore) addReward(r models.Reward) int64 {
	r.ID = s.nextID
	s.nextID++
	if r.DisplayName == "" {
		r.DisplayName = r.Name
	}
	s.rewards[r.ID] = r
	return r.ID
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	tx := &memTx{
		store:    s,
		accounts: make(map[int64]models.Account),
		rewards:  make(map[int64]models.Reward),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	store       *memStore
	accounts    map[int64]models.Account
	rewards     map[int64]models.Reward
	deposits    []models.DepositRecord
	redemptions []models.RedemptionRecord
	created     []models.Account
}

func (t *memTx) commit() {
	for id, a := range t.accounts {
		t.store.accounts[id] = a
	}
	for id, r := range t.rewards {
		t.store.rewards[id] = r
	}
	t.store.deposits = append(t.store.deposits, t.deposits...)
	t.store.redemptions = append(t.store.redemptions, t.redemptions...)
	for _, a := range t.created {
		t.store.accounts[a.ID] = a
	}
}

func (t *memTx) account(id int64) (models.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	a, ok := t.store.accounts[id]
	return a, ok
}

func (t *memTx) reward(id int64) (models.Reward, bool) {
	if r, ok := t.rewards[id]; ok {
		return r, true
	}
	r, ok := t.store.rewards[id]
	return r, ok
}

func (t *memTx) AccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error) {
	a, ok := t.account(accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (t *memTx) AddBalance(ctx context.Context, accountID int64, delta int64) (int64, error) {
	a, ok := t.account(accountID)
	if !ok {
		return 0, ErrAccountNotFound
	}
	if a.Balance+delta < 0 {
		return 0, ErrInsufficientPoints
	}
	a.Balance += delta
	t.accounts[accountID] = a
	return a.Balance, nil
}

func (t *memTx) RewardForUpdate(ctx context.Context, name string) (*models.Reward, error) {
	for id := range t.store.rewards {
		r, _ := t.reward(id)
		if r.Name == name && r.Active {
			return &r, nil
		}
	}
	return nil, ErrRewardNotFound
}

func (t *memTx) DecrementStock(ctx context.Context, rewardID int64, by int64) (int64, error) {
	r, ok := t.reward(rewardID)
	if !ok {
		return 0, ErrRewardNotFound
	}
	if r.Stock < by {
		return 0, ErrInsufficientStock
	}
	r.Stock -= by
	t.rewards[rewardID] = r
	return r.Stock, nil
}

func (t *memTx) AppendDeposit(ctx context.Context, record *models.DepositRecord) error {
	t.deposits = append(t.deposits, *record)
	return nil
}

func (t *memTx) AppendRedemption(ctx context.Context, record *models.RedemptionRecord) error {
	t.redemptions = append(t.redemptions, *record)
	return nil
}

func (t *memTx) CreateAccount(ctx context.Context, account *models.Account) error {
	for _, a := range t.store.accounts {
		if a.CardUID == account.CardUID {
			return ErrAccountAlreadyExists
		}
	}
	account.ID = t.store.nextID
	t.store.nextID++
	t.created = append(t.created, *account)
	return nil
}

// captureEmitter records emitted events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []string
}

func (c *captureEmitter) Emit(eventType string, payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, eventType)
}

func (c *captureEmitter) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

var testAwards = AwardTable{"paper": 5, "plastic": 10}

func activeAccount(balance int64) models.Account {
	return models.Account{
		CardUID:   "04:A3:1B:9C",
		Balance:   balance,
		Active:    true,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func TestEngine_Deposit(t *testing.T) {
	tests := []struct {
		name        string
		account     models.Account
		itemKind    string
		wantBalance int64
		wantErr     *Error
	}{
		{
			name:        "PaperAwardsFive",
			account:     activeAccount(0),
			itemKind:    "paper",
			wantBalance: 5,
		},
		{
			name:        "PlasticAwardsTen",
			account:     activeAccount(12),
			itemKind:    "plastic",
			wantBalance: 22,
		},
		{
			name:     "UnknownKindRejected",
			account:  activeAccount(0),
			itemKind: "glass",
			wantErr:  ErrInvalidItemKind,
		},
		{
			name: "InactiveAccountRejected",
			account: models.Account{
				CardUID:   "04:A3:1B:9C",
				Active:    false,
				ExpiresAt: time.Now().Add(24 * time.Hour),
			},
			itemKind: "paper",
			wantErr:  ErrAccountInactive,
		},
		{
			name: "ExpiredAccountRejected",
			account: models.Account{
				CardUID:   "04:A3:1B:9C",
				Active:    true,
				ExpiresAt: time.Now().Add(-time.Hour),
			},
			itemKind: "paper",
			wantErr:  ErrAccountExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			id := store.addAccount(tt.account)
			e := New(store, testAwards, nil, 60*24*time.Hour)

			result, err := e.Deposit(context.Background(), id, tt.itemKind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Deposit() error = %v, want %v", err, tt.wantErr)
				}
				if len(store.deposits) != 0 {
					t.Errorf("rejected deposit left %d records", len(store.deposits))
				}
				if store.accounts[id].Balance != tt.account.Balance {
					t.Errorf("rejected deposit changed balance to %d", store.accounts[id].Balance)
				}
				return
			}
			if err != nil {
				t.Fatalf("Deposit() error = %v", err)
			}
			if result.NewBalance != tt.wantBalance {
				t.Errorf("Deposit() NewBalance = %d, want %d", result.NewBalance, tt.wantBalance)
			}
			if store.accounts[id].Balance != tt.wantBalance {
				t.Errorf("stored balance = %d, want %d", store.accounts[id].Balance, tt.wantBalance)
			}
			if len(store.deposits) != 1 {
				t.Fatalf("deposit records = %d, want 1", len(store.deposits))
			}
			if store.deposits[0].PointsAwarded != result.PointsAwarded {
				t.Errorf("record points = %d, want %d", store.deposits[0].PointsAwarded, result.PointsAwarded)
			}
		})
	}
}

func TestEngine_Deposit_AccountNotFound(t *testing.T) {
	store := newMemStore()
	e := New(store, testAwards, nil, 60*24*time.Hour)

	_, err := e.Deposit(context.Background(), 404, "paper")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Deposit() error = %v, want ErrAccountNotFound", err)
	}
}

func TestEngine_Redeem(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		stock       int64
		wantErr     *Error
		wantBalance int64
		wantStock   int64
	}{
		{
			name:        "ExactBalanceLastUnit",
			balance:     100,
			stock:       1,
			wantBalance: 0,
			wantStock:   0,
		},
		{
			name:        "PlentyOfBoth",
			balance:     250,
			stock:       10,
			wantBalance: 150,
			wantStock:   9,
		},
		{
			name:    "OutOfStock",
			balance: 100,
			stock:   0,
			wantErr: ErrOutOfStock,
		},
		{
			name:    "InsufficientPoints",
			balance: 50,
			stock:   5,
			wantErr: ErrInsufficientPoints,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			accountID := store.addAccount(activeAccount(tt.balance))
			rewardID := store.addReward(models.Reward{
				Name: "pencil", Cost: 100, Stock: tt.stock, Active: true,
			})
			e := New(store, testAwards, nil, 60*24*time.Hour)

			result, err := e.Redeem(context.Background(), accountID, "pencil")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Redeem() error = %v, want %v", err, tt.wantErr)
				}
				if store.accounts[accountID].Balance != tt.balance {
					t.Errorf("rejected redeem changed balance to %d", store.accounts[accountID].Balance)
				}
				if store.rewards[rewardID].Stock != tt.stock {
					t.Errorf("rejected redeem changed stock to %d", store.rewards[rewardID].Stock)
				}
				if len(store.redemptions) != 0 {
					t.Errorf("rejected redeem left %d records", len(store.redemptions))
				}
				return
			}
			if err != nil {
				t.Fatalf("Redeem() error = %v", err)
			}
			if result.NewBalance != tt.wantBalance || result.NewStock != tt.wantStock {
				t.Errorf("Redeem() = balance %d stock %d, want %d/%d",
					result.NewBalance, result.NewStock, tt.wantBalance, tt.wantStock)
			}
			if store.accounts[accountID].Balance != tt.wantBalance {
				t.Errorf("stored balance = %d, want %d", store.accounts[accountID].Balance, tt.wantBalance)
			}
			if store.rewards[rewardID].Stock != tt.wantStock {
				t.Errorf("stored stock = %d, want %d", store.rewards[rewardID].Stock, tt.wantStock)
			}
			if len(store.redemptions) != 1 {
				t.Fatalf("redemption records = %d, want 1", len(store.redemptions))
			}
		})
	}
}

func TestEngine_Redeem_UnknownReward(t *testing.T) {
	store := newMemStore()
	accountID := store.addAccount(activeAccount(500))
	store.addReward(models.Reward{Name: "retired", Cost: 100, Stock: 5, Active: false})
	e := New(store, testAwards, nil, 60*24*time.Hour)

	for _, name := range []string{"ghost", "retired"} {
		if _, err := e.Redeem(context.Background(), accountID, name); !errors.Is(err, ErrRewardNotFound) {
			t.Errorf("Redeem(%q) error = %v, want ErrRewardNotFound", name, err)
		}
	}
}

func TestEngine_Redeem_LastUnitRace(t *testing.T) {
	store := newMemStore()
	rewardID := store.addReward(models.Reward{Name: "marker", Cost: 10, Stock: 1, Active: true})

	const contenders = 8
	accountIDs := make([]int64, contenders)
	for i := range accountIDs {
		accountIDs[i] = store.addAccount(activeAccount(100))
	}

	e := New(store, testAwards, nil, 60*24*time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Redeem(context.Background(), accountIDs[i], "marker")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrOutOfStock):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if store.rewards[rewardID].Stock != 0 {
		t.Errorf("final stock = %d, want 0", store.rewards[rewardID].Stock)
	}
	if len(store.redemptions) != 1 {
		t.Errorf("redemption records = %d, want 1", len(store.redemptions))
	}
}

// Balance must always equal deposits minus redemptions for the account.
func TestEngine_LedgerReconciles(t *testing.T) {
	store := newMemStore()
	accountID := store.addAccount(activeAccount(0))
	store.addReward(models.Reward{Name: "eraser", Cost: 15, Stock: 100, Active: true})
	e := New(store, testAwards, nil, 60*24*time.Hour)

	ctx := context.Background()
	steps := []func() error{
		func() error { _, err := e.Deposit(ctx, accountID, "paper"); return err },
		func() error { _, err := e.Deposit(ctx, accountID, "plastic"); return err },
		func() error { _, err := e.Redeem(ctx, accountID, "eraser"); return err },
		func() error { _, err := e.Deposit(ctx, accountID, "plastic"); return err },
		func() error { _, err := e.Redeem(ctx, accountID, "eraser"); return err },
		func() error { _, err := e.Redeem(ctx, accountID, "eraser"); return err }, // balance 10 < 15, rejected
		func() error { _, err := e.Deposit(ctx, accountID, "paper"); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil && !IsDomain(err) {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	var credited, debited int64
	for _, d := range store.deposits {
		credited += d.PointsAwarded
	}
	for _, r := range store.redemptions {
		debited += r.PointsSpent
	}
	if got := store.accounts[accountID].Balance; got != credited-debited {
		t.Errorf("balance = %d, want deposits-redemptions = %d", got, credited-debited)
	}
}

func TestEngine_Register(t *testing.T) {
	store := newMemStore()
	events := &captureEmitter{}
	e := New(store, testAwards, events, 60*24*time.Hour)
	e.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	account, err := e.Register(context.Background(), "04:A3:1B:9C", "2021-00123", "student@school.edu")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if account.ID == 0 {
		t.Error("Register() did not assign an ID")
	}
	if account.Balance != 0 || !account.Active {
		t.Errorf("Register() account = %+v, want zero balance and active", account)
	}
	want := time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)
	if !account.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", account.ExpiresAt, want)
	}

	_, err = e.Register(context.Background(), "04:A3:1B:9C", "2021-00999", "other@school.edu")
	if !errors.Is(err, ErrAccountAlreadyExists) {
		t.Errorf("duplicate Register() error = %v, want ErrAccountAlreadyExists", err)
	}

	got := events.types()
	if len(got) != 1 || got[0] != "user_register" {
		t.Errorf("events = %v, want [user_register]", got)
	}
}

func TestEngine_StoreFailureClassified(t *testing.T) {
	store := newMemStore()
	id := store.addAccount(activeAccount(100))
	store.failWith = errors.New("dial tcp: connection refused")
	e := New(store, testAwards, nil, 60*24*time.Hour)

	_, err := e.Deposit(context.Background(), id, "paper")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Deposit() error = %v, want ErrStoreUnavailable", err)
	}
	if CodeOf(err) != "STORE_UNAVAILABLE" {
		t.Errorf("CodeOf() = %q, want STORE_UNAVAILABLE", CodeOf(err))
	}
}

func TestEngine_EventsEmitted(t *testing.T) {
	store := newMemStore()
	accountID := store.addAccount(activeAccount(100))
	store.addReward(models.Reward{Name: "pencil", Cost: 100, Stock: 1, Active: true})
	events := &captureEmitter{}
	e := New(store, testAwards, events, 60*24*time.Hour)

	ctx := context.Background()
	if _, err := e.Deposit(ctx, accountID, "glass"); !errors.Is(err, ErrInvalidItemKind) {
		t.Fatalf("Deposit(glass) error = %v", err)
	}
	if _, err := e.Deposit(ctx, accountID, "paper"); err != nil {
		t.Fatalf("Deposit(paper) error = %v", err)
	}
	if _, err := e.Redeem(ctx, accountID, "pencil"); err != nil {
		t.Fatalf("Redeem(pencil) error = %v", err)
	}

	want := []string{"deposit_rejected", "item_deposit", "reward_redeem"}
	got := events.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
