package rpc

import (
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/crypto/sha3"
)

// selectorMask keeps the low 250 bits, per the starknet_keccak definition.
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

var (
	selectorMu    sync.Mutex
	selectorCache = make(map[string]string)
)

// Selector returns the starknet_keccak entrypoint selector as a hex felt.
func Selector(name string) string {
	selectorMu.Lock()
	defer selectorMu.Unlock()

	if s, ok := selectorCache[name]; ok {
		return s
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	v := new(big.Int).SetBytes(h.Sum(nil))
	v.And(v, selectorMask)

	s := fmt.Sprintf("%#x", v)
	selectorCache[name] = s
	return s
}
