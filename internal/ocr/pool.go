package ocr

import (
	"errors"
	"io"
	"sync"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Pool lazily builds one engine per profile and shares it across pipeline
// runs. The host constructs it once and calls Close at shutdown.
type Pool struct {
	factory Factory

	mu      sync.Mutex
	engines map[Profile]Engine
	closed  bool
}

func NewPool(factory Factory) *Pool {
	return &Pool{
		factory: factory,
		engines: make(map[Profile]Engine),
	}
}

// Engine returns the cached engine for profile, creating it on first use.
func (p *Pool) Engine(profile Profile) (Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("OCR pool is closed")
	}
	if e, ok := p.engines[profile]; ok {
		return e, nil
	}

	e, err := p.factory.New(profile)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded OCR engine for profile %s", profile)
	p.engines[profile] = e
	return e, nil
}

// Close releases every cached engine that holds resources.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for profile, e := range p.engines {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(p.engines, profile)
	}
	return errors.Join(errs...)
}
