package noncehunt

import (
	"fmt"
	"strings"
	"text/template"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// Renders Params as an OpenCL C kernel so that device backends run exactly the transform the
// host evaluates. One work item per candidate; the claim is an atomic compare-and-swap on
// found, after which only the winner writes winner.

// KernelName is the entry point of the rendered program.
const KernelName = "sha256_reduced"

var kernelTmpl = template.Must(template.New("kernel").Parse(`#define ROTR(x, n) (((x) >> (n)) | ((x) << (32 - (n))))
#define Ch(x, y, z) (((x) & (y)) ^ (~(x) & (z)))
#define Maj(x, y, z) (((x) & (y)) ^ ((x) & (z)) ^ ((y) & (z)))
#define Sigma0(x) (ROTR(x, 2) ^ ROTR(x, 13) ^ ROTR(x, 22))
#define Sigma1(x) (ROTR(x, 6) ^ ROTR(x, 11) ^ ROTR(x, 25))

__constant uint K[{{.Rounds}}] = {
{{- range $i, $row := .Rows}}{{if $i}},{{end}}
	{{$row}}{{end}}
};

__kernel void {{.Name}}(__global uint *found, __global uint *winner, const uint target, const uint offset) {
	uint nonce = (uint)get_global_id(0) + offset;
	uint a = {{index .IV 0 | printf "0x%08x"}}, b = {{index .IV 1 | printf "0x%08x"}}, c = {{index .IV 2 | printf "0x%08x"}}, d = {{index .IV 3 | printf "0x%08x"}};
	uint e = {{index .IV 4 | printf "0x%08x"}}, f = {{index .IV 5 | printf "0x%08x"}}, g = {{index .IV 6 | printf "0x%08x"}}, h = {{index .IV 7 | printf "0x%08x"}};
	uint w = nonce;

	for (int i = 0; i < {{.Rounds}}; i++) {
		uint t1 = h + Sigma1(e) + Ch(e, f, g) + K[i] + w;
		uint t2 = Sigma0(a) + Maj(a, b, c);
		h = g; g = f; f = e; e = d + t1;
		d = c; c = b; b = a; a = t1 + t2;
		w = 0;
	}

	if (a < target && atomic_cmpxchg(found, 0, 1) == 0) {
		*winner = nonce;
	}
}
`))

// Kernel returns the OpenCL C source of the transform described by p.
func (p *Params) Kernel() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var rows []string
	for ks := p.K[:p.Rounds]; len(ks) > 0; {
		n := 8
		if len(ks) < n {
			n = len(ks)
		}
		words := make([]string, n)
		for i := range words {
			words[i] = fmt.Sprintf("0x%08x", ks[i])
		}
		rows = append(rows, strings.Join(words, ", "))
		ks = ks[n:]
	}

	var b strings.Builder
	err := kernelTmpl.Execute(&b, struct {
		Name   string
		IV     [8]uint32
		Rows   []string
		Rounds int
	}{KernelName, p.IV, rows, p.Rounds})
	return b.String(), err
}
