package main

import (
	"encoding/binary"
	"math/bits"
	"runtime"

	"github.com/aead/chacha20/chacha"
	"github.com/p7r0x7/noncehunt"
	"golang.org/x/sync/errgroup"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// A hardly-rigorous check of the output word: how far each of its 32 bits strays from being
// set half the time, averaged over all bits.

const samples = 1 << 20

type source func(chunk, n int) ([]uint32, error)

/* Candidates chunk*n through chunk*n+n-1. */
func sequential(chunk, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(chunk*n + i)
	}
	return out, nil
}

/* A fixed key keeps runs comparable; every chunk takes its own nonce. */
func keystream(chunk, n int) ([]uint32, error) {
	var key [32]byte
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], uint64(chunk))
	c, err := chacha.NewCipher(nonce[:], key[:], 20)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n*4)
	c.XORKeyStream(buf, buf)

	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}

// monobit returns the mean bias per output bit in percent over samples candidates from src,
// tallied in parallel chunks. It fails if src does.
func monobit(src source) (float64, error) {
	chunks := runtime.NumCPU()
	n := samples / chunks
	tallies := make([][32]uint64, chunks)

	var g errgroup.Group
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			cands, err := src(c, n)
			if err != nil {
				return err
			}
			for _, cand := range cands {
				for out := noncehunt.Reduced.Sum(cand); out != 0; out &= out - 1 {
					tallies[c][bits.TrailingZeros32(out)]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total float64
	half := float64(n*chunks) / 2
	for bit := 0; bit < 32; bit++ {
		var set uint64
		for c := range tallies {
			set += tallies[c][bit]
		}
		d := float64(set) - half
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total / 32 / half * 100, nil
}
