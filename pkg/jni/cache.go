package jni

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// ClassCache memoizes durable class references by internal name for one
// runtime. It holds at most one reference per name: concurrent misses for
// the same name share a single resolution.
type ClassCache struct {
	mu      sync.Mutex
	classes map[string]Class
	group   singleflight.Group
}

// NewClassCache returns an empty cache.
func NewClassCache() *ClassCache {
	return &ClassCache{classes: make(map[string]Class)}
}

func (c *ClassCache) lookup(name string) (Class, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cls, ok := c.classes[name]
	return cls, ok
}

// Resolve returns the durable reference of name, resolving it through env
// on a miss. A hit makes no runtime call. Failures may be shared by
// concurrent callers, so their Exception carries only the class name and
// message, never a durable reference.
func (c *ClassCache) Resolve(env Env, name string) (Class, error) {
	if cls, ok := c.lookup(name); ok {
		return cls, nil
	}
	v, err, _ := c.group.Do(name, func() (any, error) {
		if cls, ok := c.lookup(name); ok {
			return cls, nil
		}
		local, err := env.FindClass(name)
		if err != nil {
			return nil, detach(err)
		}
		defer env.DeleteLocalRef(local)
		g, err := env.NewGlobalRef(local)
		if err != nil {
			return nil, detach(err)
		}
		cls := Class{Ref: g, Name: name}
		c.mu.Lock()
		c.classes[name] = cls
		c.mu.Unlock()
		return cls, nil
	})
	if err != nil {
		return Class{}, copyError(err)
	}
	return v.(Class), nil
}

// detach releases every durable exception held by an *Error chain and
// returns a copy holding only their descriptions.
func detach(err error) error {
	je, ok := err.(*Error)
	if !ok {
		return err
	}
	out := copyError(je).(*Error)
	for e := je; e != nil; {
		e.Exception.Close()
		next, _ := e.Cause.(*Error)
		e = next
	}
	return out
}

// copyError gives each caller its own *Error chain. Exceptions are copied
// by description.
func copyError(err error) error {
	je, ok := err.(*Error)
	if !ok {
		return err
	}
	c := *je
	if je.Exception != nil {
		c.Exception = &Throwable{className: je.Exception.className, message: je.Exception.message}
	}
	if cause, ok := je.Cause.(*Error); ok {
		c.Cause = copyError(cause)
	}
	return &c
}

// Len returns the number of cached classes.
func (c *ClassCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.classes)
}

// Close releases every cached reference through n and empties the cache.
func (c *ClassCache) Close(n Native) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	for name, cls := range c.classes {
		if !n.DeleteGlobalRef(cls.Ref) {
			err = multierr.Append(err, fmt.Errorf("jni: releasing class %s: stale reference %#x", name, uint32(cls.Ref)))
		}
	}
	clear(c.classes)
	return err
}
