// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"context"
	"errors"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"go.uber.org/mock/gomock"
)

func newTestContext(t *testing.T, revision rigoletto.Revision, accounts map[rigoletto.Address]state.Account) (*transactionContext, *state.State) {
	t.Helper()
	s := state.New()
	for address, account := range accounts {
		s.Put(address, account)
	}
	return newTransactionContext(context.Background(), s, revision, nil), s
}

func mustGetAccount(t *testing.T, s *state.State, address rigoletto.Address) *state.Account {
	t.Helper()
	res, err := s.Get(context.Background(), address)
	if err != nil {
		t.Fatalf("failed to get account: %v", err)
	}
	return res
}

func mustGetStorage(t *testing.T, s *state.State, address rigoletto.Address, key rigoletto.Key) rigoletto.Word {
	t.Helper()
	res, err := s.GetStorage(context.Background(), address, key)
	if err != nil {
		t.Fatalf("failed to get storage: %v", err)
	}
	return res
}

func TestTransactionContext_ReadsAccountsFromState(t *testing.T) {
	address := rigoletto.Address{1}
	txc, _ := newTestContext(t, rigoletto.Cancun, map[rigoletto.Address]state.Account{
		address: {Balance: rigoletto.NewValue(10), Nonce: 2, Code: rigoletto.NewBytecode([]byte{1, 2, 3})},
	})

	if !txc.AccountExists(address) {
		t.Fatalf("account should exist")
	}
	if want, got := rigoletto.NewValue(10), txc.GetBalance(address); want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(2), txc.GetNonce(address); want != got {
		t.Errorf("unexpected nonce, wanted %d, got %d", want, got)
	}
	if want, got := 3, txc.GetCodeSize(address); want != got {
		t.Errorf("unexpected code size, wanted %d, got %d", want, got)
	}
	if want, got := rigoletto.Keccak256([]byte{1, 2, 3}), txc.GetCodeHash(address); want != got {
		t.Errorf("unexpected code hash, wanted %v, got %v", want, got)
	}

	missing := rigoletto.Address{2}
	if txc.AccountExists(missing) {
		t.Errorf("account should not exist")
	}
	if want, got := (rigoletto.Hash{}), txc.GetCodeHash(missing); want != got {
		t.Errorf("unexpected code hash of missing account, wanted %v, got %v", want, got)
	}
}

func TestTransactionContext_ModificationsAreOnlyVisibleAfterCommit(t *testing.T) {
	address := rigoletto.Address{1}
	txc, s := newTestContext(t, rigoletto.Cancun, nil)

	txc.SetBalance(address, rigoletto.NewValue(5))
	txc.SetNonce(address, 1)
	txc.SetStorage(address, rigoletto.Key{1}, rigoletto.Word{2})

	if account := mustGetAccount(t, s, address); account != nil {
		t.Fatalf("state modified before commit: %v", account)
	}
	if err := txc.commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	account := mustGetAccount(t, s, address)
	if account == nil {
		t.Fatalf("account not committed")
	}
	if want, got := rigoletto.NewValue(5), account.Balance; want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
	if want, got := (rigoletto.Word{2}), mustGetStorage(t, s, address, rigoletto.Key{1}); want != got {
		t.Errorf("unexpected storage, wanted %v, got %v", want, got)
	}
}

func TestTransactionContext_RestoreSnapshotUndoesModifications(t *testing.T) {
	address := rigoletto.Address{1}
	key := rigoletto.Key{1}
	txc, _ := newTestContext(t, rigoletto.Cancun, map[rigoletto.Address]state.Account{
		address: {Balance: rigoletto.NewValue(10), Nonce: 1},
	})
	txc.SetStorage(address, key, rigoletto.Word{1})

	snapshot := txc.CreateSnapshot()
	txc.SetBalance(address, rigoletto.NewValue(20))
	txc.SetNonce(address, 7)
	txc.SetCode(address, rigoletto.Code{0x01})
	txc.SetStorage(address, key, rigoletto.Word{2})
	txc.SetTransientStorage(address, key, rigoletto.Word{3})
	txc.AccessAccount(rigoletto.Address{9})
	txc.AccessStorage(address, key)
	txc.EmitLog(rigoletto.Log{Address: address})
	txc.SelfDestruct(address, rigoletto.Address{9})
	txc.RestoreSnapshot(snapshot)

	if want, got := rigoletto.NewValue(10), txc.GetBalance(address); want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(1), txc.GetNonce(address); want != got {
		t.Errorf("unexpected nonce, wanted %d, got %d", want, got)
	}
	if want, got := 0, txc.GetCodeSize(address); want != got {
		t.Errorf("unexpected code size, wanted %d, got %d", want, got)
	}
	if want, got := (rigoletto.Word{1}), txc.GetStorage(address, key); want != got {
		t.Errorf("unexpected storage, wanted %v, got %v", want, got)
	}
	if want, got := (rigoletto.Word{}), txc.GetTransientStorage(address, key); want != got {
		t.Errorf("unexpected transient storage, wanted %v, got %v", want, got)
	}
	if txc.IsAddressInAccessList(rigoletto.Address{9}) {
		t.Errorf("access list not restored")
	}
	if _, slotPresent := txc.IsSlotInAccessList(address, key); slotPresent {
		t.Errorf("slot access list not restored")
	}
	if want, got := 0, len(txc.GetLogs()); want != got {
		t.Errorf("unexpected number of logs, wanted %d, got %d", want, got)
	}
	if txc.HasSelfDestructed(address) {
		t.Errorf("self-destruct not restored")
	}
}

func TestTransactionContext_StorageStatusIsBasedOnValueAtStartOfTransaction(t *testing.T) {
	address := rigoletto.Address{1}
	key := rigoletto.Key{1}
	txc, s := newTestContext(t, rigoletto.Cancun, map[rigoletto.Address]state.Account{
		address: {Nonce: 1},
	})
	s.SetStorage(address, key, rigoletto.Word{1})

	steps := []struct {
		value rigoletto.Word
		want  rigoletto.StorageStatus
	}{
		{rigoletto.Word{2}, rigoletto.StorageModified},
		{rigoletto.Word{}, rigoletto.StorageModifiedDeleted},
		{rigoletto.Word{1}, rigoletto.StorageDeletedRestored},
		{rigoletto.Word{1}, rigoletto.StorageAssigned},
	}
	for i, step := range steps {
		if want, got := step.want, txc.SetStorage(address, key, step.value); want != got {
			t.Errorf("step %d: unexpected status, wanted %v, got %v", i, want, got)
		}
		if want, got := (rigoletto.Word{1}), txc.GetCommittedStorage(address, key); want != got {
			t.Errorf("step %d: unexpected committed value, wanted %v, got %v", i, want, got)
		}
	}
}

func TestTransactionContext_AccessStatusTurnsWarm(t *testing.T) {
	txc, _ := newTestContext(t, rigoletto.Cancun, nil)
	address := rigoletto.Address{1}
	if want, got := rigoletto.ColdAccess, txc.AccessAccount(address); want != got {
		t.Errorf("unexpected first access, wanted %v, got %v", want, got)
	}
	if want, got := rigoletto.WarmAccess, txc.AccessAccount(address); want != got {
		t.Errorf("unexpected second access, wanted %v, got %v", want, got)
	}
	if want, got := rigoletto.ColdAccess, txc.AccessStorage(address, rigoletto.Key{1}); want != got {
		t.Errorf("unexpected first slot access, wanted %v, got %v", want, got)
	}
	if want, got := rigoletto.WarmAccess, txc.AccessStorage(address, rigoletto.Key{1}); want != got {
		t.Errorf("unexpected second slot access, wanted %v, got %v", want, got)
	}
}

func TestTransactionContext_CreateAccountHidesPreviousStorage(t *testing.T) {
	address := rigoletto.Address{1}
	key := rigoletto.Key{1}
	txc, s := newTestContext(t, rigoletto.Cancun, map[rigoletto.Address]state.Account{
		address: {Balance: rigoletto.NewValue(3)},
	})
	s.SetStorage(address, key, rigoletto.Word{1})

	if want, got := (rigoletto.Word{1}), txc.GetStorage(address, key); want != got {
		t.Fatalf("unexpected storage, wanted %v, got %v", want, got)
	}
	txc.createAccount(address)
	if want, got := (rigoletto.Word{}), txc.GetStorage(address, key); want != got {
		t.Errorf("storage of previous account still visible, got %v", got)
	}
	if want, got := rigoletto.NewValue(3), txc.GetBalance(address); want != got {
		t.Errorf("balance should be retained, wanted %v, got %v", want, got)
	}
	txc.SetStorage(address, rigoletto.Key{2}, rigoletto.Word{2})
	txc.SetNonce(address, 1)

	if err := txc.commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if want, got := (rigoletto.Word{}), mustGetStorage(t, s, address, key); want != got {
		t.Errorf("old storage survived commit, got %v", got)
	}
	if want, got := (rigoletto.Word{2}), mustGetStorage(t, s, address, rigoletto.Key{2}); want != got {
		t.Errorf("new storage not committed, wanted %v, got %v", want, got)
	}
}

func TestTransactionContext_SelfDestructFollowsRevisionRules(t *testing.T) {
	contract := rigoletto.Address{1}
	beneficiary := rigoletto.Address{2}
	tests := map[string]struct {
		revision rigoletto.Revision
		created  bool
		removed  bool
	}{
		"london":                {rigoletto.London, false, true},
		"london created":        {rigoletto.London, true, true},
		"cancun":                {rigoletto.Cancun, false, false},
		"cancun created in tx":  {rigoletto.Cancun, true, true},
		"shanghai created":      {rigoletto.Shanghai, true, true},
		"shanghai pre-existing": {rigoletto.Shanghai, false, true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			txc, s := newTestContext(t, test.revision, map[rigoletto.Address]state.Account{
				contract: {Balance: rigoletto.NewValue(10), Nonce: 1, Code: rigoletto.NewBytecode([]byte{0})},
			})
			if test.created {
				txc.createAccount(contract)
			}

			if want, got := test.removed, txc.SelfDestruct(contract, beneficiary); want != got {
				t.Errorf("unexpected result, wanted %t, got %t", want, got)
			}
			if want, got := rigoletto.NewValue(10), txc.GetBalance(beneficiary); want != got {
				t.Errorf("unexpected beneficiary balance, wanted %v, got %v", want, got)
			}

			txc.finalize()
			if err := txc.commit(); err != nil {
				t.Fatalf("failed to commit: %v", err)
			}
			if want, got := test.removed, mustGetAccount(t, s, contract) == nil; want != got {
				t.Errorf("unexpected removal, wanted %t, got %t", want, got)
			}
		})
	}
}

func TestTransactionContext_TouchedEmptyAccountsAreDeletedSinceSpuriousDragon(t *testing.T) {
	empty := rigoletto.Address{1}
	for _, revision := range []rigoletto.Revision{rigoletto.Tangerine, rigoletto.SpuriousDragon, rigoletto.Cancun} {
		t.Run(revision.String(), func(t *testing.T) {
			txc, s := newTestContext(t, revision, nil)
			txc.SetBalance(empty, rigoletto.Value{})
			txc.finalize()
			if err := txc.commit(); err != nil {
				t.Fatalf("failed to commit: %v", err)
			}
			deleted := mustGetAccount(t, s, empty) == nil
			if want, got := revision >= rigoletto.SpuriousDragon, deleted; want != got {
				t.Errorf("unexpected deletion, wanted %t, got %t", want, got)
			}
		})
	}
}

func TestTransactionContext_RemoteFetchFailureIsRetained(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := state.NewMockRemoteSource(ctrl)
	injected := errors.New("injected")
	source.EXPECT().Account(gomock.Any(), gomock.Any(), gomock.Any()).Return(state.RemoteAccount{}, injected).AnyTimes()

	s, err := state.ForkRemote(context.Background(), source, 100, nil, state.ForkOptions{ChainID: 1})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}
	txc := newTransactionContext(context.Background(), s, rigoletto.Cancun, nil)

	if txc.AccountExists(rigoletto.Address{1}) {
		t.Errorf("failed fetch should not report an account")
	}
	if !errors.Is(txc.err, rigoletto.ErrRemoteFetch) {
		t.Errorf("unexpected error, wanted %v, got %v", rigoletto.ErrRemoteFetch, txc.err)
	}
	if err := txc.commit(); !errors.Is(err, rigoletto.ErrRemoteFetch) {
		t.Errorf("commit should fail, got %v", err)
	}
}

func TestTransactionContext_BlockHashesAreResolved(t *testing.T) {
	txc := newTransactionContext(context.Background(), state.New(), rigoletto.Cancun, func(number int64) (rigoletto.Hash, error) {
		return rigoletto.Hash{byte(number)}, nil
	})
	if want, got := (rigoletto.Hash{5}), txc.GetBlockHash(5); want != got {
		t.Errorf("unexpected hash, wanted %v, got %v", want, got)
	}
	txc.blockHashes = nil
	if want, got := (rigoletto.Hash{}), txc.GetBlockHash(5); want != got {
		t.Errorf("unexpected hash, wanted %v, got %v", want, got)
	}
}

func TestTransactionContext_FailedBlockHashLookupsAreRetained(t *testing.T) {
	injected := &rigoletto.RemoteFetchError{Op: "block", BlockNumber: 5, Err: errors.New("injected")}
	txc := newTransactionContext(context.Background(), state.New(), rigoletto.Cancun, func(number int64) (rigoletto.Hash, error) {
		return rigoletto.Hash{1}, injected
	})
	if want, got := (rigoletto.Hash{}), txc.GetBlockHash(5); want != got {
		t.Errorf("unexpected hash, wanted %v, got %v", want, got)
	}
	if !errors.Is(txc.err, rigoletto.ErrRemoteFetch) {
		t.Errorf("unexpected error, wanted %v, got %v", rigoletto.ErrRemoteFetch, txc.err)
	}
	if err := txc.commit(); !errors.Is(err, rigoletto.ErrRemoteFetch) {
		t.Errorf("commit should fail, got %v", err)
	}
}
