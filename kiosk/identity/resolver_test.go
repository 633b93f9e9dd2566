package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
	"github.com/smartvendoplus/smartvendo/kiosk/identity/mock"
	"go.uber.org/mock/gomock"
)

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "SpacedLowercase",
			raw:  "04 a3 1b 9c",
			want: "04:A3:1B:9C",
		},
		{
			name: "DashedWithExtraBytes",
			raw:  "04-A3-1B-9C-7F-22",
			want: "04:A3:1B:9C",
		},
		{
			name: "AlreadyCanonical",
			raw:  "04:A3:1B:9C",
			want: "04:A3:1B:9C",
		},
		{
			name: "NonHexStripped",
			raw:  "sn=04a31b9c;",
			want: "04:A3:1B:9C",
		},
		{
			name: "OddNibblePadded",
			raw:  "4a3",
			want: "4A:03",
		},
		{
			name: "Empty",
			raw:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeUID(tt.raw); got != tt.want {
				t.Errorf("NormalizeUID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolver_Resolve_Known(t *testing.T) {
	accounts := mock.NewMockAccounts(gomock.NewController(t))
	account := &models.Account{ID: 7, CardUID: "04:A3:1B:9C"}

	accounts.EXPECT().
		GetByCardUID(gomock.Any(), "04:A3:1B:9C").
		Return(account, nil)
	accounts.EXPECT().
		TouchLastSeen(gomock.Any(), int64(7)).
		Return(nil)

	r := NewResolver(accounts)
	got, err := r.Resolve(context.Background(), "04 a3 1b 9c")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Known || got.Account.ID != 7 {
		t.Errorf("Resolve() = %+v, want known account 7", got)
	}
}

func TestResolver_Resolve_Unknown(t *testing.T) {
	accounts := mock.NewMockAccounts(gomock.NewController(t))
	accounts.EXPECT().
		GetByCardUID(gomock.Any(), "DE:AD:BE:EF").
		Return(nil, &repositories.NotFoundError{Entity: "account", ID: "DE:AD:BE:EF"}).
		Times(2)

	r := NewResolver(accounts)
	for i := 0; i < 2; i++ {
		got, err := r.Resolve(context.Background(), "deadbeef")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Known || got.Account != nil {
			t.Errorf("Resolve() = %+v, want unknown card", got)
		}
		if got.CardUID != "DE:AD:BE:EF" {
			t.Errorf("Resolve() CardUID = %q, want DE:AD:BE:EF", got.CardUID)
		}
	}
}

func TestResolver_Resolve_TouchFailureIgnored(t *testing.T) {
	accounts := mock.NewMockAccounts(gomock.NewController(t))
	accounts.EXPECT().
		GetByCardUID(gomock.Any(), gomock.Any()).
		Return(&models.Account{ID: 3, CardUID: "04:A3:1B:9C"}, nil)
	accounts.EXPECT().
		TouchLastSeen(gomock.Any(), int64(3)).
		Return(errors.New("connection reset"))

	r := NewResolver(accounts)
	got, err := r.Resolve(context.Background(), "04a31b9c")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Known {
		t.Errorf("Resolve() Known = false, want true")
	}
}

func TestResolver_Resolve_StoreUnavailable(t *testing.T) {
	accounts := mock.NewMockAccounts(gomock.NewController(t))
	accounts.EXPECT().
		GetByCardUID(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("dial tcp: connection refused"))

	r := NewResolver(accounts)
	_, err := r.Resolve(context.Background(), "04a31b9c")
	if !errors.Is(err, engine.ErrStoreUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrStoreUnavailable", err)
	}
}
