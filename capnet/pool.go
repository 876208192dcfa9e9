package capnet

import (
	"sync"
)

var (
	f32Lock sync.Mutex
	f32Pool = make(map[int]*sync.Pool)
)

// borrowF32 returns a zeroed []float32 of length n.
func borrowF32(n int) []float32 {
	f32Lock.Lock()
	p, ok := f32Pool[n]
	f32Lock.Unlock()
	if ok {
		if s, ok := p.Get().([]float32); ok {
			for i := range s {
				s[i] = 0
			}
			return s
		}
	}
	return make([]float32, n)
}

func returnF32(s []float32) {
	n := len(s)
	f32Lock.Lock()
	p, ok := f32Pool[n]
	if !ok {
		p = new(sync.Pool)
		f32Pool[n] = p
	}
	f32Lock.Unlock()
	p.Put(s)
}
