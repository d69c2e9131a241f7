package dschecksum

import "testing"

// FuzzComputeConsistency fuzzes Compute across all three algorithms.
func FuzzComputeConsistency(f *testing.F) {
	f.Add([]byte{}, byte(AlgorithmAdler32))
	f.Add([]byte("hello world"), byte(AlgorithmCRC32C))
	f.Add(make([]byte, 1024), byte(AlgorithmXXH3))

	f.Fuzz(func(t *testing.T, data []byte, algo byte) {
		a := Algorithm(algo % 3)
		sum1 := Compute(a, data)
		sum2 := Compute(a, data)
		if sum1 != sum2 {
			t.Errorf("Compute(%s, ...) not consistent: %x != %x", a, sum1, sum2)
		}
	})
}

// FuzzChainAssociative fuzzes that Chain is simple XOR folding regardless
// of grouping order.
func FuzzChainAssociative(f *testing.F) {
	f.Add(uint32(0), uint32(1), uint32(2))
	f.Add(uint32(0xFFFFFFFF), uint32(0), uint32(0xDEADBEEF))

	f.Fuzz(func(t *testing.T, a, b, c uint32) {
		left := Chain(Chain(0, a, 0), b, 0)
		left = Chain(left, c, 0)
		right := a ^ b ^ c
		if left != right {
			t.Errorf("Chain folding mismatch: %x != %x", left, right)
		}
	})
}
