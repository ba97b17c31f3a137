package appointment

import (
	"context"
	"fmt"
	"sync"

	appLog "repaircal/internal/log"
)

// Refresher is a view that can rebuild itself from the repository.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Views is the set of currently mounted views. After every successful
// mutation the Editor refreshes each of them independently.
type Views struct {
	mu      sync.Mutex
	order   []string
	mounted map[string]*mount
}

type mount struct {
	r Refresher
}

func NewViews() *Views {
	return &Views{mounted: make(map[string]*mount)}
}

// Mount registers r under name, replacing any view of the same name.
// The returned function unmounts it.
func (v *Views) Mount(name string, r Refresher) (unmount func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.mounted[name]; !exists {
		v.order = append(v.order, name)
	}
	m := &mount{r: r}
	v.mounted[name] = m

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.mounted[name] != m {
			return
		}
		delete(v.mounted, name)
		for i, n := range v.order {
			if n == name {
				v.order = append(v.order[:i], v.order[i+1:]...)
				break
			}
		}
	}
}

// Mounted lists mounted view names in mount order.
func (v *Views) Mounted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.order...)
}

// Refresh refreshes every mounted view. A failing view is logged and does
// not stop the others; the number of failures is returned.
func (v *Views) Refresh(ctx context.Context) int {
	v.mu.Lock()
	names := append([]string(nil), v.order...)
	views := make([]Refresher, 0, len(names))
	for _, n := range names {
		views = append(views, v.mounted[n].r)
	}
	v.mu.Unlock()

	failed := 0
	for i, r := range views {
		if err := refreshOne(ctx, r); err != nil {
			failed++
			appLog.Error("view refresh failed", err, "view", names[i])
		}
	}
	return failed
}

func refreshOne(ctx context.Context, r Refresher) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during refresh: %v", p)
		}
	}()
	return r.Refresh(ctx)
}
