package dschecksum

import "testing"

func TestGoldenDeterminism(t *testing.T) {
	algos := []Algorithm{AlgorithmAdler32, AlgorithmCRC32C, AlgorithmXXH3}
	testCases := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x00}},
		{"hello", []byte("hello")},
		{"123456789", []byte("123456789")},
		{"long string", []byte("The quick brown fox jumps over the lazy dog")},
	}

	for _, a := range algos {
		for _, tc := range testCases {
			t.Run(a.String()+"/"+tc.name, func(t *testing.T) {
				c1 := Compute(a, tc.input)
				c2 := Compute(a, tc.input)
				if c1 != c2 {
					t.Errorf("Compute(%s, %q) not deterministic: got 0x%08x and 0x%08x", a, tc.input, c1, c2)
				}
			})
		}
	}
}

func TestGoldenAlgorithmString(t *testing.T) {
	testCases := []struct {
		algo     Algorithm
		expected string
	}{
		{AlgorithmAdler32, "Adler32"},
		{AlgorithmCRC32C, "CRC32C"},
		{AlgorithmXXH3, "XXH3"},
		{Algorithm(99), "Unknown(99)"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.algo.String(); got != tc.expected {
				t.Errorf("Algorithm(%d).String() = %q, want %q", tc.algo, got, tc.expected)
			}
		})
	}
}

func TestGoldenChainXOR(t *testing.T) {
	// Chaining is commutative/associative XOR: verify the running chain
	// over three extents equals folding pairwise in either grouping.
	a, b, c := uint32(0x1111), uint32(0x2222), uint32(0x3333)
	chain1 := Chain(Chain(Chain(0, a, 0), b, 0), c, 0)
	chain2 := a ^ b ^ c
	if chain1 != chain2 {
		t.Errorf("Chain folding = 0x%08x, want 0x%08x", chain1, chain2)
	}
}

func TestGoldenAlgorithmsDisagree(t *testing.T) {
	// Different algorithms over the same data should (overwhelmingly) not
	// collide; this guards against an accidental no-op implementation.
	data := []byte("extent header bytes")
	adler := Compute(AlgorithmAdler32, data)
	crc := Compute(AlgorithmCRC32C, data)
	xxh := Compute(AlgorithmXXH3, data)
	if adler == crc || adler == xxh || crc == xxh {
		t.Errorf("expected distinct checksums across algorithms, got adler=0x%08x crc=0x%08x xxh=0x%08x", adler, crc, xxh)
	}
}
