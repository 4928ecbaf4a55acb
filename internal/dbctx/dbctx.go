package dbctx

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx   context.Context
	Tx    *gorm.DB
	hooks *commitHooks
}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// New returns a Context without a transaction.
func New(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// WithTx returns a Context bound to tx that collects AfterCommit callbacks.
func WithTx(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx, hooks: &commitHooks{}}
}

// DB returns the transaction when set, otherwise fallback, bound to Ctx.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return db.WithContext(ctx)
}

// AfterCommit defers fn until Commit is called. Outside WithTx fn runs now.
func (c Context) AfterCommit(fn func()) {
	if c.hooks == nil {
		fn()
		return
	}
	c.hooks.mu.Lock()
	c.hooks.fns = append(c.hooks.fns, fn)
	c.hooks.mu.Unlock()
}

// Commit runs the collected callbacks once, in registration order. Call it
// only after the transaction committed; on rollback drop the Context.
func (c Context) Commit() {
	if c.hooks == nil {
		return
	}
	c.hooks.mu.Lock()
	fns := c.hooks.fns
	c.hooks.fns = nil
	c.hooks.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
