package noncehunt

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

/* Just enough OpenCL C for a host compiler: work items become an ascending loop over gid. */
const kernelPrelude = `#include <stdio.h>
#include <stddef.h>
typedef unsigned int uint;
#define __kernel
#define __global
#define __constant static const
static size_t gid;
#define get_global_id(dim) gid
static uint atomic_cmpxchg(uint *p, uint cmp, uint val) {
	uint old = *p;
	if (old == cmp) *p = val;
	return old;
}
`

/* Reads "target offset size" lines and prints "found winner" for each. */
const kernelHarness = `
int main(void) {
	uint target, offset, size;
	while (scanf("%%u %%u %%u", &target, &offset, &size) == 3) {
		uint found = 0, winner = 0;
		for (gid = 0; gid < size; gid++) {
			%s(&found, &winner, target, offset);
		}
		printf("%%u %%u\n", found, winner);
	}
	return 0;
}
`

type kernelQuery struct{ target, offset, size uint32 }

// hostKernel compiles p's kernel with the system C compiler and runs it over queries, skipping
// the test when no compiler is installed.
func hostKernel(t *testing.T, p Params, queries []kernelQuery) [][2]uint32 {
	t.Helper()
	cc, err := exec.LookPath("cc")
	if err != nil {
		if cc, err = exec.LookPath("gcc"); err != nil {
			t.Skip("no C compiler on PATH")
		}
	}
	src, err := p.Kernel()
	require.NoError(t, err)

	dir := t.TempDir()
	file, bin := filepath.Join(dir, "kernel.c"), filepath.Join(dir, "kernel")
	code := kernelPrelude + src + fmt.Sprintf(kernelHarness, KernelName)
	require.NoError(t, os.WriteFile(file, []byte(code), 0o600))
	out, err := exec.Command(cc, "-std=c99", "-O1", "-o", bin, file).CombinedOutput()
	require.NoError(t, err, string(out))

	var in strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&in, "%d %d %d\n", q.target, q.offset, q.size)
	}
	cmd := exec.Command(bin)
	cmd.Stdin = strings.NewReader(in.String())
	out, err = cmd.Output()
	require.NoError(t, err)

	var got [][2]uint32
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		var r [2]uint32
		_, err := fmt.Sscan(sc.Text(), &r[0], &r[1])
		require.NoError(t, err)
		got = append(got, r)
	}
	require.Len(t, got, len(queries))
	return got
}

func TestKernel_MatchesHost(t *testing.T) {
	t.Parallel()
	for _, p := range []Params{Reduced, {IV: iv, K: k[:], Rounds: 3}} {
		/* A target one above a digest accepts that candidate and a target equal to it does not,
		which pins every device digest to the host's. */
		var queries []kernelQuery
		var cands []uint32
		for _, c := range []uint32{0, 1, 2, 0xf, 1360, 0xdeadbeef, 0xfffffffe, 0xffffffff} {
			d := p.Sum(c)
			if d == 0xffffffff {
				continue
			}
			cands = append(cands, c)
			queries = append(queries, kernelQuery{d + 1, c, 1}, kernelQuery{d, c, 1})
		}
		got := hostKernel(t, p, queries)
		for i, c := range cands {
			require.Equal(t, [2]uint32{1, c}, got[2*i], "rounds %d candidate %#x", p.Rounds, c)
			require.Equal(t, uint32(0), got[2*i+1][0], "rounds %d candidate %#x", p.Rounds, c)
		}
	}
}

func TestKernel_Scan(t *testing.T) {
	t.Parallel()
	got := hostKernel(t, Reduced, []kernelQuery{
		{1 << 20, 0, 20000},
		{0xffffffff, 0, 16},
		{0, 0, 4096},
		{1 << 20, 1361, 6000},
	})
	require.Equal(t, [2]uint32{1, 1360}, got[0])
	require.Equal(t, [2]uint32{1, 0}, got[1])
	require.Equal(t, [2]uint32{0, 0}, got[2])
	require.Equal(t, [2]uint32{0, 0}, got[3])
}
