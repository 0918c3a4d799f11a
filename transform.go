package noncehunt

import (
	"errors"
	"fmt"
	. "math/bits"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// The reduced compression transform evaluated once per candidate. This is NOT SHA-256: the
// block is the candidate followed by fifteen zero words (no length padding), only the first
// 16 of 64 rounds run, and the message schedule is never expanded. It exists to be a
// deterministic, moderately expensive function of a 32-bit input and must not be used where a
// conformant digest is expected.

const blockWords = 16

// ErrParams is returned for transform configurations that cannot be evaluated.
var ErrParams = errors.New("noncehunt: invalid transform parameters")

// Params is the typed form of the transform: initial working variables, round constants and
// the number of rounds to run.
type Params struct {
	IV     [8]uint32
	K      []uint32
	Rounds int
}

/* The public SHA-256 initialization vector and first sixteen round constants. */
var (
	iv = [8]uint32{
		0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
		0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19}
	k = [blockWords]uint32{
		0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
		0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174}
)

// Reduced is the fixed 16-round configuration every search uses unless told otherwise.
var Reduced = Params{IV: iv, K: k[:], Rounds: blockWords}

// Validate reports whether p can be evaluated. Rounds is capped by the block length because
// words past the block are never scheduled.
func (p *Params) Validate() error {
	switch {
	case p.Rounds < 1 || p.Rounds > blockWords:
		return fmt.Errorf("%w: %d rounds, want 1 to %d", ErrParams, p.Rounds, blockWords)
	case len(p.K) < p.Rounds:
		return fmt.Errorf("%w: %d round constants for %d rounds", ErrParams, len(p.K), p.Rounds)
	}
	return nil
}

// Sum runs the transform over the block holding candidate c and returns the final value of
// the first working variable. It does not allocate and is safe for concurrent use as long as
// p is not modified.
func (p *Params) Sum(c uint32) uint32 {
	a, b, cc, d := p.IV[0], p.IV[1], p.IV[2], p.IV[3]
	e, f, g, h := p.IV[4], p.IV[5], p.IV[6], p.IV[7]
	kk := p.K[:p.Rounds]

	w := c /* Only word 0 of the block is ever nonzero. */
	for i := range kk {
		t1 := h + sigma1(e) + ch(e, f, g) + kk[i] + w
		t2 := sigma0(a) + maj(a, b, cc)
		h, g, f, e = g, f, e, d+t1
		d, cc, b, a = cc, b, a, t1+t2
		w = 0
	}
	return a
}

// Accepts is the acceptance predicate of a search: the candidate's output word is strictly
// below target. No output satisfies a target of 0.
func (p *Params) Accepts(c, target uint32) bool { return p.Sum(c) < target }

func ch(x, y, z uint32) uint32  { return x&y ^ ^x&z }
func maj(x, y, z uint32) uint32 { return x&y ^ x&z ^ y&z }

func sigma0(x uint32) uint32 {
	return RotateLeft32(x, -2) ^ RotateLeft32(x, -13) ^ RotateLeft32(x, -22)
}

func sigma1(x uint32) uint32 {
	return RotateLeft32(x, -6) ^ RotateLeft32(x, -11) ^ RotateLeft32(x, -25)
}
