package cache

import (
	"fmt"
	"testing"
)

func BenchmarkLRUGet(b *testing.B) {
	c := NewLRU[bool](Options{MaxSize: 10000})
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("cx|rz:%d|0,1", i), i%2 == 0)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("cx|rz:999|0,1")
	}
}

func BenchmarkLRUSetEvicting(b *testing.B) {
	c := NewLRU[bool](Options{MaxSize: 512})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("h|rx:%d|0", i), true)
	}
}

type fixedRevision uint64

func (r fixedRevision) Revision() uint64 { return uint64(r) }

func BenchmarkPropertySetGet(b *testing.B) {
	p := NewPropertySet(fixedRevision(7))
	p.Put("commutation", struct{}{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Get("commutation")
	}
}
