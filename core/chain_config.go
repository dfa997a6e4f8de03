package core

import "math/big"

// ChainConfig selects which fork rules are active for a given block, by
// block number (pre-merge forks) or timestamp (post-merge forks). It mirrors
// go-ethereum's own ChainConfig shape so the conformance oracle in geth/ can
// translate between the two without a lossy re-derivation.
type ChainConfig struct {
	ChainID *big.Int

	HomesteadBlock      *big.Int
	EIP150Block         *big.Int
	EIP155Block         *big.Int
	EIP158Block         *big.Int
	ByzantiumBlock      *big.Int
	ConstantinopleBlock *big.Int
	PetersburgBlock     *big.Int
	IstanbulBlock       *big.Int
	BerlinBlock         *big.Int
	LondonBlock         *big.Int

	TerminalTotalDifficulty *big.Int

	ShanghaiTime *uint64
	CancunTime   *uint64
	PragueTime   *uint64
}

func blockReached(field *big.Int, num *big.Int) bool {
	if field == nil || num == nil {
		return false
	}
	return field.Cmp(num) <= 0
}

func timeReached(field *uint64, time uint64) bool {
	if field == nil {
		return false
	}
	return *field <= time
}

func (c *ChainConfig) IsHomestead(num *big.Int) bool { return c != nil && blockReached(c.HomesteadBlock, num) }
func (c *ChainConfig) IsEIP150(num *big.Int) bool     { return c != nil && blockReached(c.EIP150Block, num) }
func (c *ChainConfig) IsEIP155(num *big.Int) bool     { return c != nil && blockReached(c.EIP155Block, num) }
func (c *ChainConfig) IsEIP158(num *big.Int) bool     { return c != nil && blockReached(c.EIP158Block, num) }
func (c *ChainConfig) IsByzantium(num *big.Int) bool  { return c != nil && blockReached(c.ByzantiumBlock, num) }
func (c *ChainConfig) IsConstantinople(num *big.Int) bool {
	return c != nil && blockReached(c.ConstantinopleBlock, num)
}
func (c *ChainConfig) IsPetersburg(num *big.Int) bool { return c != nil && blockReached(c.PetersburgBlock, num) }
func (c *ChainConfig) IsIstanbul(num *big.Int) bool    { return c != nil && blockReached(c.IstanbulBlock, num) }
func (c *ChainConfig) IsBerlin(num *big.Int) bool      { return c != nil && blockReached(c.BerlinBlock, num) }
func (c *ChainConfig) IsLondon(num *big.Int) bool      { return c != nil && blockReached(c.LondonBlock, num) }

// IsMerge reports whether the chain has passed the terminal total difficulty,
// i.e. proof-of-stake block production is active.
func (c *ChainConfig) IsMerge() bool {
	return c != nil && c.TerminalTotalDifficulty != nil
}

func (c *ChainConfig) IsShanghai(time uint64) bool { return c != nil && timeReached(c.ShanghaiTime, time) }
func (c *ChainConfig) IsCancun(time uint64) bool    { return c != nil && timeReached(c.CancunTime, time) }
func (c *ChainConfig) IsPrague(time uint64) bool    { return c != nil && timeReached(c.PragueTime, time) }
