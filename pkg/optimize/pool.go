package optimize

import "sync"

// BytePool recycles fixed-size byte buffers across media read loops.
type BytePool struct {
	pool sync.Pool
	size int
}

func NewBytePool(size int) *BytePool {
	return &BytePool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
		size: size,
	}
}

func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

func (p *BytePool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	p.pool.Put(b[:p.size])
}
