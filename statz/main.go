package main

import (
	"encoding/binary"
	. "fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/dterei/gotsc"
	"github.com/klauspost/cpuid/v2"
	"github.com/minio/sha256-simd"
	"github.com/p7r0x7/noncehunt"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/sys/cpu"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.

var calltime = gotsc.TSCOverhead()
var sink uint32

func BenchmarkReduced(b *testing.B) {
	for i := b.N; i > 0; i-- {
		sink ^= noncehunt.Reduced.Sum(uint32(i))
	}
}

func BenchmarkSHA256(b *testing.B) {
	var msg [4]byte
	for i := b.N; i > 0; i-- {
		binary.LittleEndian.PutUint32(msg[:], uint32(i))
		sum := sha256.Sum256(msg[:])
		sink ^= binary.BigEndian.Uint32(sum[:])
	}
}

func BenchmarkBlake3(b *testing.B) {
	var msg [4]byte
	for i := b.N; i > 0; i-- {
		binary.LittleEndian.PutUint32(msg[:], uint32(i))
		sum := blake3.Sum256(msg[:])
		sink ^= binary.BigEndian.Uint32(sum[:])
	}
}

func BenchmarkXXH3(b *testing.B) {
	var msg [4]byte
	for i := b.N; i > 0; i-- {
		binary.LittleEndian.PutUint32(msg[:], uint32(i))
		sink ^= uint32(xxh3.Hash(msg[:]))
	}
}

// benchAlg prints candidates per second and, where the TSC can be read, cycles per candidate.
func benchAlg(alg func(b *testing.B)) {
	totalHz, polls, mut, done := uint64(0), uint64(0), &sync.Mutex{}, make(chan struct{})
	if calltime > 0 {
		go func() {
			for {
				select {
				case <-done:
					return
				default:
				}
				tsc1 := gotsc.BenchStart()
				time.Sleep(time.Millisecond)
				tsc2 := gotsc.BenchEnd()

				mut.Lock()
				totalHz += tsc2 - tsc1 - calltime
				polls++
				mut.Unlock()

				time.Sleep(time.Millisecond * 9)
			}
		}()
	}
	r := testing.Benchmark(alg)
	close(done)
	mut.Lock()
	defer mut.Unlock()

	rate := float64(r.N) / r.T.Seconds()
	Println("Speed " + fmtFloats(rate/1e6) + "   M/s")
	if calltime > 0 && polls > 0 {
		/* Each poll slept one millisecond, so the mean tick count per poll is kHz. */
		hz := float64(totalHz) / float64(polls) * 1000
		Println("      " + fmtFloats(hz/rate) + "   cycles/candidate")
	}
	Println()
}

func fmtFloats(f ...float64) string {
	var str, style string
	for _, v := range f {
		switch whole := float64(int64(v)) == v; {
		case v > 1e8 || (v < 1e-6 && !whole):
			style = "%8.3g"
		case v <= 1e1 && !whole:
			style = "%8.6f"
		case v <= 1e2 && !whole:
			style = "%8.5f"
		case v <= 1e3 && !whole:
			style = "%8.4f"
		case v <= 1e4 && !whole:
			style = "%8.3f"
		default:
			style = "%8.f"
		}
		str += "  " + Sprintf(style, v)
	}
	return str
}

// features lists the instruction set extensions the baselines may take advantage of.
func features() string {
	var have []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"avx2", cpu.X86.HasAVX2},
		{"avx512f", cpu.X86.HasAVX512F},
		{"sha-ni", cpuid.CPU.Supports(cpuid.SHA)},
		{"asimd", cpu.ARM64.HasASIMD},
		{"sha2", cpu.ARM64.HasSHA2},
	} {
		if f.ok {
			have = append(have, f.name)
		}
	}
	if len(have) == 0 {
		return "none detected"
	}
	return Sprint(have)
}

func main() {
	Printf("Running Statz on %d CPUs!\n%s/%s, features: %s\n\n",
		runtime.NumCPU(), runtime.GOOS, runtime.GOARCH, features())
	t := time.Now()

	for _, test := range []struct {
		name string
		src  source
	}{
		{"Sequential candidates Monobit test:  ", sequential},
		{"ChaCha20 candidates Monobit test:    ", keystream},
	} {
		bias, err := monobit(test.src)
		if err != nil {
			Println(test.name + err.Error())
			continue
		}
		Println(test.name + Sprintf("%5.3f%%", bias))
	}
	Println(" ============================================= ")

	Println("reduced 16-round transform")
	benchAlg(BenchmarkReduced)

	Println("github.com/minio/sha256-simd")
	benchAlg(BenchmarkSHA256)

	Println("github.com/zeebo/blake3")
	benchAlg(BenchmarkBlake3)

	Println("github.com/zeebo/xxh3")
	benchAlg(BenchmarkXXH3)

	Println("Finished in " + time.Since(t).Truncate(time.Millisecond).String() + ".")
}
