package zbc

import "sync"

// Pool hands out RequestControllers and takes them back on terminal exit,
// resetting each one's per-request fields before it re-enters the
// underlying sync.Pool.
type Pool struct {
	cfg cfg
	p   *sync.Pool
}

// NewPool builds a Pool; every RequestController it hands out shares the
// given options.
func NewPool(opts ...Opt) *Pool {
	c := defaultCfg()
	for _, o := range opts {
		o(&c)
	}
	pool := &Pool{cfg: c}
	pool.p = &sync.Pool{
		New: func() interface{} {
			return newRequestController(pool)
		},
	}
	return pool
}

// Get returns a CLOSED, unarmed RequestController ready for
// configure_command/configure_control_message.
func (p *Pool) Get() *RequestController {
	return p.p.Get().(*RequestController)
}

// release resets rc's per-request fields and returns it to the underlying
// sync.Pool. A RequestController holds only a back-pointer to its owning
// Pool, not to any internal list, so release is the sole path back in.
func (p *Pool) release(rc *RequestController) {
	rc.reset()
	p.p.Put(rc)
}
