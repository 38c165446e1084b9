// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"context"
	"errors"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"go.uber.org/mock/gomock"
)

func newForkedState(t *testing.T, source RemoteSource, overrides map[rigoletto.Address]AccountOverride) *State {
	t.Helper()
	s, err := ForkRemote(context.Background(), source, 100, overrides, ForkOptions{ChainID: 1})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}
	return s
}

func TestForkRemote_RemoteValuesAreFetchedOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	address := rigoletto.Address{1}

	source.EXPECT().Account(gomock.Any(), address, uint64(100)).Return(RemoteAccount{
		Balance: rigoletto.NewValue(42),
		Nonce:   3,
		Code:    rigoletto.Code{0x00},
	}, nil).Times(1)
	source.EXPECT().Storage(gomock.Any(), address, rigoletto.Key{1}, uint64(100)).
		Return(rigoletto.Word{7}, nil).Times(1)

	s := newForkedState(t, source, nil)
	for i := 0; i < 2; i++ {
		account := mustGet(t, s, address)
		if account == nil {
			t.Fatalf("remote account not found")
		}
		if want, got := rigoletto.NewValue(42), account.Balance; want != got {
			t.Errorf("unexpected balance, wanted %v, got %v", want, got)
		}
		if want, got := rigoletto.Keccak256([]byte{0}), account.CodeHash(); want != got {
			t.Errorf("unexpected code hash, wanted %v, got %v", want, got)
		}
		if want, got := (rigoletto.Word{7}), mustGetStorage(t, s, address, rigoletto.Key{1}); want != got {
			t.Errorf("unexpected slot, wanted %v, got %v", want, got)
		}
	}
}

func TestForkRemote_EmptyRemoteAccountIsAbsent(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	source.EXPECT().Account(gomock.Any(), gomock.Any(), gomock.Any()).Return(RemoteAccount{}, nil)

	s := newForkedState(t, source, nil)
	if account := mustGet(t, s, rigoletto.Address{1}); account != nil {
		t.Errorf("expected no account, got %v", account)
	}
}

func TestForkRemote_OverridesWin(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	address := rigoletto.Address{1}
	source.EXPECT().Account(gomock.Any(), address, uint64(100)).Return(RemoteAccount{
		Balance: rigoletto.NewValue(42),
		Nonce:   3,
	}, nil).Times(1)

	balance := rigoletto.NewValue(1000)
	s := newForkedState(t, source, map[rigoletto.Address]AccountOverride{
		address: {
			Balance: &balance,
			Storage: map[rigoletto.Key]rigoletto.Word{{1}: {9}},
		},
	})

	account := mustGet(t, s, address)
	if want, got := balance, account.Balance; want != got {
		t.Errorf("override ignored, wanted %v, got %v", want, got)
	}
	if want, got := uint64(3), account.Nonce; want != got {
		t.Errorf("remote nonce lost, wanted %v, got %v", want, got)
	}
	if want, got := (rigoletto.Word{9}), mustGetStorage(t, s, address, rigoletto.Key{1}); want != got {
		t.Errorf("storage override ignored, wanted %v, got %v", want, got)
	}
}

func TestForkRemote_WritesAreLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	address := rigoletto.Address{1}
	source.EXPECT().Account(gomock.Any(), address, gomock.Any()).Return(RemoteAccount{Nonce: 1}, nil)

	s := newForkedState(t, source, nil)
	s.SetStorage(address, rigoletto.Key{1}, rigoletto.Word{5})
	if want, got := (rigoletto.Word{5}), mustGetStorage(t, s, address, rigoletto.Key{1}); want != got {
		t.Errorf("local write not visible, wanted %v, got %v", want, got)
	}

	// after removal, the remote storage must no longer be consulted
	if _, err := s.Remove(context.Background(), address); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if value := mustGetStorage(t, s, address, rigoletto.Key{2}); !value.IsZero() {
		t.Errorf("unexpected slot value %v", value)
	}
}

func TestForkRemote_FailuresAreReportedAndNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	address := rigoletto.Address{1}
	injected := errors.New("connection refused")

	gomock.InOrder(
		source.EXPECT().Account(gomock.Any(), address, gomock.Any()).Return(RemoteAccount{}, injected),
		source.EXPECT().Account(gomock.Any(), address, gomock.Any()).Return(RemoteAccount{Nonce: 4}, nil),
	)

	s := newForkedState(t, source, nil)
	_, err := s.Get(context.Background(), address)
	if !errors.Is(err, rigoletto.ErrRemoteFetch) || !errors.Is(err, injected) {
		t.Fatalf("unexpected error %v", err)
	}
	var fetchErr *rigoletto.RemoteFetchError
	if !errors.As(err, &fetchErr) || fetchErr.BlockNumber != 100 {
		t.Errorf("unexpected error details %v", err)
	}

	if want, got := uint64(4), mustGet(t, s, address).Nonce; want != got {
		t.Errorf("unexpected nonce, wanted %d, got %d", want, got)
	}
}

func TestForkRemote_ModifyPropagatesFetchErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	source.EXPECT().Account(gomock.Any(), gomock.Any(), gomock.Any()).Return(RemoteAccount{}, errors.New("request timed out"))

	s := newForkedState(t, source, nil)
	err := s.Modify(context.Background(), rigoletto.Address{1}, func(current *Account) (*Account, error) {
		t.Errorf("modifier must not be called")
		return current, nil
	})
	if !errors.Is(err, rigoletto.ErrRemoteFetch) {
		t.Errorf("unexpected error %v", err)
	}
	if len(s.Accounts()) != 0 {
		t.Errorf("failed modification changed the state")
	}
}

func TestForkRemote_CancelledFetchLeavesCacheUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	address := rigoletto.Address{1}
	ctx, cancel := context.WithCancel(context.Background())

	gomock.InOrder(
		source.EXPECT().Account(gomock.Any(), address, gomock.Any()).DoAndReturn(
			func(context.Context, rigoletto.Address, uint64) (RemoteAccount, error) {
				cancel()
				return RemoteAccount{Nonce: 1}, nil
			}),
		source.EXPECT().Account(gomock.Any(), address, gomock.Any()).Return(RemoteAccount{Nonce: 2}, nil),
	)

	cache := NewMemoryFetchCache(16)
	s, err := ForkRemote(context.Background(), source, 100, nil, ForkOptions{ChainID: 1, Cache: cache})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}
	if _, err := s.Get(ctx, address); !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error %v", err)
	}
	if want, got := uint64(2), mustGet(t, s, address).Nonce; want != got {
		t.Errorf("cancelled fetch was cached, wanted %d, got %d", want, got)
	}
}

func TestForkRemote_ChainIDIsRequestedIfUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	source.EXPECT().ChainID(gomock.Any()).Return(uint64(250), nil)

	s, err := ForkRemote(context.Background(), source, 7, nil, ForkOptions{})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}
	if want, got := uint64(250), s.remote.chainID; want != got {
		t.Errorf("wanted %d, got %d", want, got)
	}
	if block, forked := s.ForkBlockNumber(); !forked || block != 7 {
		t.Errorf("unexpected fork block %d", block)
	}
}

func TestForkRemote_RootIgnoresRemoteReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockRemoteSource(ctrl)
	source.EXPECT().Account(gomock.Any(), gomock.Any(), gomock.Any()).Return(RemoteAccount{Nonce: 1}, nil)

	s := newForkedState(t, source, nil)
	before := mustRoot(t, s)
	mustGet(t, s, rigoletto.Address{1})
	if want, got := before, mustRoot(t, s); want != got {
		t.Errorf("remote read changed root, wanted %v, got %v", want, got)
	}
}
