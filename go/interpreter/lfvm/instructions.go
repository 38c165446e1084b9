// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lfvm

import (
	"bytes"
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/holiman/uint256"
)

func opStop() status {
	return statusStopped
}

func opEndWithResult(c *context) error {
	offset := *c.stack.pop()
	size := *c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(&offset, &size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}
	c.output = bytes.Clone(data)
	return nil
}

func opPc(c *context) {
	c.stack.pushUndefined().SetUint64(c.pc)
}

func checkJumpDest(c *context, destination *uint256.Int) error {
	if !destination.IsUint64() {
		return errInvalidJump
	}
	if !c.jumpDests.isValid(destination.Uint64()) {
		return errInvalidJump
	}
	return nil
}

func opJump(c *context) error {
	destination := c.stack.pop()
	if err := checkJumpDest(c, destination); err != nil {
		return err
	}
	c.pc = destination.Uint64()
	return nil
}

func opJumpi(c *context) error {
	destination := c.stack.pop()
	condition := c.stack.pop()
	if condition.IsZero() {
		c.pc++
		return nil
	}
	if err := checkJumpDest(c, destination); err != nil {
		return err
	}
	c.pc = destination.Uint64()
	return nil
}

func opPop(c *context) {
	c.stack.pop()
}

// opPush pushes the n bytes following the current instruction. Missing bytes
// at the end of the code are read as zeros.
func opPush(c *context, n int) {
	z := c.stack.pushUndefined()
	start := c.pc + 1
	end := start + uint64(n)
	codeLen := uint64(len(c.code))
	if end <= codeLen {
		z.SetBytes(c.code[start:end])
	} else {
		var value [32]byte
		if start < codeLen {
			copy(value[:], c.code[start:])
		}
		z.SetBytes(value[:n])
	}
	c.pc = end
}

func opPush0(c *context) {
	c.stack.pushUndefined().Clear()
}

func opDup(c *context, pos int) {
	c.stack.dup(pos - 1)
}

func opSwap(c *context, pos int) {
	c.stack.swap(pos)
}

func opMstore(c *context) error {
	var addr = c.stack.pop()
	var value = c.stack.pop()

	offset, overflow := addr.Uint64WithOverflow()
	if overflow {
		return errOverflow
	}
	return c.memory.setWord(offset, value, c)
}

func opMstore8(c *context) error {
	var addr = c.stack.pop()
	var value = c.stack.pop()

	offset, overflow := addr.Uint64WithOverflow()
	if overflow {
		return errOverflow
	}
	return c.memory.set(offset, []byte{byte(value.Uint64())}, c)
}

func opMcopy(c *context) error {
	var destAddr = c.stack.pop()
	var srcAddr = c.stack.pop()
	var sizeU256 = c.stack.pop()

	if sizeU256.IsZero() {
		// zero size skips expansions although offset may be off-bounds
		return nil
	}

	destOffset, destOverflow := destAddr.Uint64WithOverflow()
	srcOffset, srcOverflow := srcAddr.Uint64WithOverflow()
	if destOverflow || srcOverflow || !sizeU256.IsUint64() {
		return errOverflow
	}

	size := sizeU256.Uint64()
	if err := c.useGas(CopyGas * rigoletto.Gas(rigoletto.SizeInWords(size))); err != nil {
		return err
	}

	// Both ranges are expanded before copying so that the source slice stays
	// valid while writing to the destination.
	if err := c.memory.expandMemory(max(srcOffset, destOffset), size, c); err != nil {
		return err
	}
	data, err := c.memory.getSlice(srcOffset, size, c)
	if err != nil {
		return err
	}
	return c.memory.set(destOffset, data, c)
}

func opMload(c *context) error {
	var trg = c.stack.peek()
	var addr = *trg

	if !addr.IsUint64() {
		return errOverflow
	}
	return c.memory.readWord(addr.Uint64(), trg, c)
}

func opMsize(c *context) {
	c.stack.pushUndefined().SetUint64(c.memory.length())
}

func opSstore(c *context) error {

	// SStore is a write instruction, it shall not be executed in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	// EIP-2200 demands that at least 2300 gas is available for SSTORE
	if c.isAtLeast(rigoletto.Istanbul) && c.gas <= SstoreSentryGasEIP2200 {
		return errOutOfGas
	}

	key := c.stack.pop()
	value := c.stack.pop()
	c.recordStorageAccess(key, value)

	slot := rigoletto.Key(key.Bytes32())
	cost := rigoletto.Gas(0)
	if c.isAtLeast(rigoletto.Berlin) &&
		c.context.AccessStorage(c.params.Recipient, slot) == rigoletto.ColdAccess {
		cost += ColdSloadCostEIP2929
	}

	storageStatus := c.context.SetStorage(c.params.Recipient, slot, rigoletto.Word(value.Bytes32()))

	cost += getDynamicCostsForSstore(c.revision, storageStatus)
	if err := c.useGas(cost); err != nil {
		return err
	}

	c.refund += getRefundForSstore(c.revision, storageStatus)
	return nil
}

func opSload(c *context) error {
	var top = c.stack.peek()

	addr := c.params.Recipient
	slot := rigoletto.Key(top.Bytes32())
	if c.isAtLeast(rigoletto.Berlin) {
		// charge costs for warm/cold slot access
		costs := WarmStorageReadCostEIP2929
		if c.context.AccessStorage(addr, slot) == rigoletto.ColdAccess {
			costs = ColdSloadCostEIP2929
		}
		if err := c.useGas(costs); err != nil {
			return err
		}
	}
	key := *top
	value := c.context.GetStorage(addr, slot)
	top.SetBytes32(value[:])
	c.recordStorageAccess(&key, top)
	return nil
}

func opTstore(c *context) error {
	// Transient storage is treated as state, therefore TSTORE is not
	// permitted in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	key := rigoletto.Key(c.stack.pop().Bytes32())
	value := rigoletto.Word(c.stack.pop().Bytes32())
	c.context.SetTransientStorage(c.params.Recipient, key, value)
	return nil
}

func opTload(c *context) {
	top := c.stack.peek()
	key := rigoletto.Key(top.Bytes32())
	value := c.context.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
}

func opCaller(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
}

func opCallvalue(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
}

func opCallDatasize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Input)))
}

func opCallDataload(c *context) {
	top := c.stack.peek()
	if !top.IsUint64() {
		top.Clear()
		return
	}
	value := getData(c.params.Input, top.Uint64(), 32)
	top.SetBytes32(value)
}

// genericDataCopy implements CALLDATACOPY and CODECOPY, copying from the given
// source into memory. Reads beyond the end of the source produce zeros.
func genericDataCopy(c *context, source []byte) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}

	// Charge for the copy costs
	words := rigoletto.SizeInWords(length.Uint64())
	if err := c.useGas(CopyGas * rigoletto.Gas(words)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(source, dataOffset64, length.Uint64()))
	return nil
}

func opAnd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
}

func opOr(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
}

func opNot(c *context) {
	a := c.stack.peek()
	a.Not(a)
}

func opXor(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
}

func opIszero(c *context) {
	top := c.stack.peek()
	if top.IsZero() {
		top.SetOne()
	} else {
		top.Clear()
	}
}

func opEq(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opLt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opGt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSlt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSgt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opShr(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.LtUint64(256) {
		b.Rsh(b, uint(a.Uint64()))
	} else {
		b.Clear()
	}
}

func opShl(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.LtUint64(256) {
		b.Lsh(b, uint(a.Uint64()))
	} else {
		b.Clear()
	}
}

func opSar(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.GtUint64(255) {
		if b.Sign() >= 0 {
			b.Clear()
		} else {
			b.SetAllOne()
		}
		return
	}
	b.SRsh(b, uint(a.Uint64()))
}

func opSignExtend(c *context) {
	back, num := c.stack.pop(), c.stack.peek()
	num.ExtendSign(num, back)
}

func opByte(c *context) {
	th, val := c.stack.pop(), c.stack.peek()
	val.Byte(th)
}

func opAdd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
}

func opSub(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
}

func opMul(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
}

func opMulMod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.MulMod(a, b, n)
}

func opDiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
}

func opSDiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
}

func opMod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
}

func opAddMod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.AddMod(a, b, n)
}

func opSMod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
}

func opExp(c *context) error {
	base, exponent := c.stack.pop(), c.stack.peek()
	if err := c.useGas(expByteGas(c.revision) * rigoletto.Gas(exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSha3(c *context) error {
	offset, size := c.stack.pop(), c.stack.peek()

	if checkSizeOffsetUint64Overflow(offset, size) != nil {
		return errOverflow
	}

	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}

	// charge dynamic gas price
	words := rigoletto.SizeInWords(size.Uint64())
	if err := c.useGas(Keccak256WordGas * rigoletto.Gas(words)); err != nil {
		return err
	}
	hash := c.hash(data)
	size.SetBytes32(hash[:])
	return nil
}

func opGas(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.gas))
}

// opPrevRandao is DIFFICULTY before the Merge.
func opPrevRandao(c *context) {
	if !c.isAtLeast(rigoletto.Merge) {
		difficulty := c.params.Difficulty
		c.stack.pushUndefined().SetBytes32(difficulty[:])
		return
	}
	prevRandao := c.params.PrevRandao
	c.stack.pushUndefined().SetBytes32(prevRandao[:])
}

func opTimestamp(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
}

func opNumber(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
}

func opCoinbase(c *context) {
	coinbase := c.params.Coinbase
	c.stack.pushUndefined().SetBytes20(coinbase[:])
}

func opGasLimit(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.GasLimit))
}

func opGasPrice(c *context) {
	price := c.params.GasPrice
	c.stack.pushUndefined().SetBytes32(price[:])
}

// chargeAccountAccess charges the EIP-2929 costs for accessing addr.
func (c *context) chargeAccountAccess(addr rigoletto.Address) error {
	if !c.isAtLeast(rigoletto.Berlin) {
		return nil
	}
	return c.useGas(getAccessCost(c.context.AccessAccount(addr)))
}

// isEmpty reports whether addr is empty in the sense of EIP-161.
func (c *context) isEmpty(addr rigoletto.Address) bool {
	return c.context.GetNonce(addr) == 0 &&
		c.context.GetBalance(addr) == (rigoletto.Value{}) &&
		c.context.GetCodeSize(addr) == 0
}

func opBalance(c *context) error {
	slot := c.stack.peek()
	address := rigoletto.Address(slot.Bytes20())
	if err := c.chargeAccountAccess(address); err != nil {
		return err
	}
	balance := c.context.GetBalance(address)
	slot.SetBytes32(balance[:])
	return nil
}

func opSelfbalance(c *context) {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
}

func opBaseFee(c *context) {
	fee := c.params.BaseFee
	c.stack.pushUndefined().SetBytes32(fee[:])
}

func opBlobHash(c *context) {
	index := c.stack.peek()
	if index.IsUint64() && index.Uint64() < uint64(len(c.params.BlobHashes)) {
		index.SetBytes32(c.params.BlobHashes[index.Uint64()][:])
	} else {
		index.Clear()
	}
}

func opBlobBaseFee(c *context) {
	fee := c.params.BlobBaseFee
	c.stack.pushUndefined().SetBytes32(fee[:])
}

func opSelfdestruct(c *context) (status, error) {

	// SelfDestruct is a write instruction, it shall not be executed in static mode.
	if c.params.Static {
		return statusFailed, errStaticContextViolation
	}

	beneficiary := rigoletto.Address(c.stack.pop().Bytes20())
	cost := rigoletto.Gas(0)
	if c.isAtLeast(rigoletto.Berlin) {
		// selfdestruct does not charge for warm access (EIP-2929)
		if accessStatus := c.context.AccessAccount(beneficiary); accessStatus == rigoletto.ColdAccess {
			cost += getAccessCost(accessStatus)
		}
	}
	if c.isAtLeast(rigoletto.Tangerine) {
		var isNew bool
		if c.isAtLeast(rigoletto.SpuriousDragon) {
			isNew = c.isEmpty(beneficiary)
		} else {
			isNew = !c.context.AccountExists(beneficiary)
		}
		balance := c.context.GetBalance(c.params.Recipient)
		cost += selfDestructNewAccountCost(c.revision, isNew, balance)
	}
	// even death is not for free
	if err := c.useGas(cost); err != nil {
		return statusFailed, err
	}

	destructed := c.context.SelfDestruct(c.params.Recipient, beneficiary)
	c.refund += selfDestructRefund(destructed, c.revision)
	return statusSelfDestructed, nil
}

func opChainId(c *context) {
	id := c.params.ChainID
	c.stack.pushUndefined().SetBytes32(id[:])
}

func opBlockhash(c *context) {
	num := c.stack.peek()
	num64, overflow := num.Uint64WithOverflow()

	if overflow {
		num.Clear()
		return
	}
	var upper, lower uint64
	upper = uint64(c.params.BlockNumber)
	if upper >= 257 {
		lower = upper - 256
	}
	if num64 >= lower && num64 < upper {
		hash := c.context.GetBlockHash(int64(num64))
		num.SetBytes32(hash[:])
	} else {
		num.Clear()
	}
}

func opAddress(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
}

func opOrigin(c *context) {
	origin := c.params.Origin
	c.stack.pushUndefined().SetBytes20(origin[:])
}

func opCodeSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.code)))
}

func opExtcodesize(c *context) error {
	top := c.stack.peek()
	address := rigoletto.Address(top.Bytes20())
	if err := c.chargeAccountAccess(address); err != nil {
		return err
	}
	top.SetUint64(uint64(c.context.GetCodeSize(address)))
	return nil
}

func opExtcodehash(c *context) error {
	slot := c.stack.peek()
	address := rigoletto.Address(slot.Bytes20())
	if err := c.chargeAccountAccess(address); err != nil {
		return err
	}
	if c.isEmpty(address) {
		slot.Clear()
	} else {
		hash := c.context.GetCodeHash(address)
		slot.SetBytes32(hash[:])
	}
	return nil
}

func opExtCodeCopy(c *context) error {
	var (
		stack      = c.stack
		a          = stack.pop()
		memOffset  = stack.pop()
		codeOffset = stack.pop()
		length     = stack.pop()
	)
	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	// Charge for length of copied code
	words := rigoletto.SizeInWords(length.Uint64())
	if err := c.useGas(CopyGas * rigoletto.Gas(words)); err != nil {
		return err
	}

	address := rigoletto.Address(a.Bytes20())
	if err := c.chargeAccountAccess(address); err != nil {
		return err
	}
	codeOffset64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOffset64 = math.MaxUint64
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(c.context.GetCode(address), codeOffset64, length.Uint64()))
	return nil
}

// getData returns size bytes of data starting at start, right-padded with
// zeros where the range exceeds the data.
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length || end < start {
		end = length
	}
	res := make([]byte, size)
	copy(res, data[start:end])
	return res
}

func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !offset.IsUint64() || !size.IsUint64() || offset.Uint64()+size.Uint64() < offset.Uint64() {
		return errOverflow
	}
	return nil
}

func genericCreate(c *context, kind rigoletto.CallKind) error {

	// Create is a write instruction, it shall not be executed in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	var (
		value  = c.stack.pop()
		offset = c.stack.pop()
		size   = c.stack.pop()
		salt   = rigoletto.Hash{}
	)
	if kind == rigoletto.Create2 {
		salt = c.stack.pop().Bytes32() // pop salt value for Create2
	}

	if checkSizeOffsetUint64Overflow(offset, size) != nil {
		return errOverflow
	}

	sizeU64 := size.Uint64()
	input, err := c.memory.getSlice(offset.Uint64(), sizeU64, c)
	if err != nil {
		return err
	}

	if c.isAtLeast(rigoletto.Shanghai) {
		initCodeCost, err := computeCodeSizeCost(sizeU64)
		if err != nil {
			return err
		}
		if err = c.useGas(initCodeCost); err != nil {
			return err
		}
	}

	if kind == rigoletto.Create2 {
		// Charge for hashing the init code to compute the target address.
		words := rigoletto.SizeInWords(sizeU64)
		if err := c.useGas(Keccak256WordGas * rigoletto.Gas(words)); err != nil {
			return err
		}
	}

	// Apply EIP150
	gas := c.gas
	if c.isAtLeast(rigoletto.Tangerine) {
		gas -= gas / 64
	}
	if err := c.useGas(gas); err != nil {
		return err
	}

	res, err := c.context.Call(kind, rigoletto.CallParameters{
		Sender: c.params.Recipient,
		Value:  rigoletto.Value(value.Bytes32()),
		Input:  bytes.Clone(input),
		Gas:    gas,
		Salt:   salt,
	})
	if err != nil {
		return &callError{err}
	}

	// Push item on the stack based on the returned error.
	success := c.stack.pushUndefined()
	if !res.Success {
		success.Clear()
		c.returnData = res.Output
	} else {
		success.SetBytes20(res.CreatedAddress[:])
		c.returnData = nil
	}
	c.gas += res.GasLeft
	c.refund += res.GasRefund
	c.callGasReturned = res.GasLeft
	return nil
}

func genericCall(c *context, kind rigoletto.CallKind) error {
	stack := c.stack
	value := uint256.NewInt(0)

	// Pop call parameters.
	providedGas, addr := stack.pop(), stack.pop()
	if kind == rigoletto.Call || kind == rigoletto.CallCode {
		value = stack.pop()
	}
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	// In a static context, no value must be transferred.
	if kind == rigoletto.Call && c.params.Static && !value.IsZero() {
		return errStaticContextViolation
	}

	toAddr := rigoletto.Address(addr.Bytes20())

	if checkSizeOffsetUint64Overflow(inOffset, inSize) != nil {
		return errOverflow
	}
	if checkSizeOffsetUint64Overflow(retOffset, retSize) != nil {
		return errOverflow
	}

	// Expand the memory for both the input and the output range.
	if err := c.memory.expandMemory(inOffset.Uint64(), inSize.Uint64(), c); err != nil {
		return err
	}
	if err := c.memory.expandMemory(retOffset.Uint64(), retSize.Uint64(), c); err != nil {
		return err
	}

	// from berlin onwards access cost changes depending on warm/cold access.
	if err := c.chargeAccountAccess(toAddr); err != nil {
		return err
	}

	// for static and delegate calls, the following value checks will always be zero.
	if !value.IsZero() {
		if err := c.useGas(CallValueTransferGas); err != nil {
			return err
		}
	}

	// Charge for the creation of a new account. Since EIP-161 only value
	// transfers to empty accounts are affected.
	if kind == rigoletto.Call {
		var newAccount bool
		if c.isAtLeast(rigoletto.SpuriousDragon) {
			newAccount = !value.IsZero() && c.isEmpty(toAddr)
		} else {
			newAccount = !c.context.AccountExists(toAddr)
		}
		if newAccount {
			if err := c.useGas(CallNewAccountGas); err != nil {
				return err
			}
		}
	}

	nestedCallGas, err := c.callGas(providedGas)
	if err != nil {
		return err
	}
	if err := c.useGas(nestedCallGas); err != nil {
		return err
	}
	if !value.IsZero() {
		nestedCallGas += CallStipend
	}

	// If we are in static mode, recursive calls are to be treated like
	// static calls.
	if c.params.Static && kind == rigoletto.Call {
		kind = rigoletto.StaticCall
	}

	args, err := c.memory.getSlice(inOffset.Uint64(), inSize.Uint64(), c)
	if err != nil {
		return err
	}

	// Prepare arguments, depending on call kind
	callParams := rigoletto.CallParameters{
		Input: bytes.Clone(args),
		Gas:   nestedCallGas,
		Value: rigoletto.Value(value.Bytes32()),
	}

	switch kind {
	case rigoletto.Call, rigoletto.StaticCall:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = toAddr
		callParams.CodeAddress = toAddr

	case rigoletto.CallCode:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr

	case rigoletto.DelegateCall:
		callParams.Sender = c.params.Sender
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr
		callParams.Value = c.params.Value
	}

	// Perform the call.
	ret, err := c.context.Call(kind, callParams)
	if err != nil {
		return &callError{err}
	}

	output, err := c.memory.getSlice(retOffset.Uint64(), retSize.Uint64(), c)
	if err != nil {
		return err
	}
	copy(output, ret.Output)

	success := stack.pushUndefined()
	if ret.Success {
		success.SetOne()
	} else {
		success.Clear()
	}
	c.gas += ret.GasLeft
	c.refund += ret.GasRefund
	c.returnData = ret.Output
	c.callGasReturned = ret.GasLeft
	return nil
}

// callGas computes the gas forwarded to a nested call. Since EIP-150 at most
// all but one 64th of the remaining gas is forwarded, before that the
// requested amount is demanded.
func (c *context) callGas(requested *uint256.Int) (rigoletto.Gas, error) {
	if c.isAtLeast(rigoletto.Tangerine) {
		available := c.gas - c.gas/64
		if requested.IsUint64() && requested.Uint64() < uint64(available) {
			return rigoletto.Gas(requested.Uint64()), nil
		}
		return available, nil
	}
	if !requested.IsUint64() || requested.Uint64() > math.MaxInt64 {
		return 0, errGasUintOverflow
	}
	return rigoletto.Gas(requested.Uint64()), nil
}

func opReturnDataSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
}

func opReturnDataCopy(c *context) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)

	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return errReturnDataOutOfBounds
	}
	var end uint256.Int
	end.Add(dataOffset, length)
	end64, overflow := end.Uint64WithOverflow()
	if overflow || uint64(len(c.returnData)) < end64 {
		return errReturnDataOutOfBounds
	}

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	words := rigoletto.SizeInWords(length.Uint64())
	if err := c.useGas(CopyGas * rigoletto.Gas(words)); err != nil {
		return err
	}

	return c.memory.set(memOffset.Uint64(), c.returnData[offset64:end64], c)
}

func opLog(c *context, size int) error {

	// LogN op codes are write instructions, they shall not be executed in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	topics := make([]rigoletto.Hash, size)
	stack := c.stack
	mStart, mSize := stack.pop(), stack.pop()

	if err := checkSizeOffsetUint64Overflow(mStart, mSize); err != nil {
		return err
	}

	for i := 0; i < size; i++ {
		topics[i] = stack.pop().Bytes32()
	}

	start := mStart.Uint64()
	logSize := mSize.Uint64()

	// charge for log size
	if logSize > math.MaxInt64/uint64(LogDataGas) {
		return errGasUintOverflow
	}
	if err := c.useGas(LogDataGas * rigoletto.Gas(logSize)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(start, logSize, c)
	if err != nil {
		return err
	}

	// make a copy of the data to disconnect from memory
	c.context.EmitLog(rigoletto.Log{
		Address: c.params.Recipient,
		Topics:  topics,
		Data:    bytes.Clone(data),
	})
	return nil
}
