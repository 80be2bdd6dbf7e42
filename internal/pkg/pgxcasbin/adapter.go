// Package pgxcasbin persists casbin policies in PostgreSQL through pgx and
// fans out policy changes to other replicas with LISTEN/NOTIFY.
package pgxcasbin

import (
	"context"
	"strings"

	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/persist"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

const DefaultTable = "casbin_rules"

var (
	_ persist.Adapter         = (*Adapter)(nil)
	_ persist.BatchAdapter    = (*Adapter)(nil)
	_ persist.FilteredAdapter = (*Adapter)(nil)
)

// Adapter expects a table with columns id, ptype and v0..v5, see the migrations.
type Adapter struct {
	store    *store
	filtered *atomic.Bool
}

func NewAdapter(db DB, table string) *Adapter {
	if table == "" {
		table = DefaultTable
	}
	return &Adapter{store: newStore(db, table), filtered: atomic.NewBool(false)}
}

func (a *Adapter) LoadPolicy(m model.Model) error {
	a.filtered.Store(false)

	lines, err := a.store.selectWhere(context.Background(), "", 0)
	if err != nil {
		return err
	}
	return load(m, lines)
}

// LoadFilteredPolicy accepts map[ptype][][]fieldValues; rows matching any entry are loaded.
func (a *Adapter) LoadFilteredPolicy(m model.Model, filter any) error {
	if lo.IsNil(filter) {
		return a.LoadPolicy(m)
	}

	ft, ok := filter.(map[string][][]string)
	if !ok {
		return ErrInvalidFilter
	}
	a.filtered.Store(true)

	var lines [][]string
	for ptype, conds := range ft {
		for _, values := range conds {
			got, err := a.store.selectWhere(context.Background(), ptype, 0, values...)
			if err != nil {
				return err
			}
			lines = append(lines, got...)
		}
	}

	return load(m, lo.UniqBy(lines, func(l []string) string { return strings.Join(l, ",") }))
}

func (a *Adapter) IsFiltered() bool {
	return a.filtered.Load()
}

func (a *Adapter) SavePolicy(m model.Model) error {
	var lines [][]string
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				lines = append(lines, append([]string{ptype}, rule...))
			}
		}
	}
	return a.store.replaceAll(context.Background(), lines)
}

func (a *Adapter) AddPolicy(_, ptype string, rule []string) error {
	return a.store.insert(context.Background(), ptype, rule)
}

func (a *Adapter) AddPolicies(_, ptype string, rules [][]string) error {
	return a.store.insert(context.Background(), ptype, rules...)
}

func (a *Adapter) RemovePolicy(_, ptype string, rule []string) error {
	return a.store.delete(context.Background(), ptype, rule)
}

func (a *Adapter) RemovePolicies(_, ptype string, rules [][]string) error {
	return a.store.delete(context.Background(), ptype, rules...)
}

func (a *Adapter) RemoveFilteredPolicy(_, ptype string, fieldIndex int, fieldValues ...string) error {
	return a.store.deleteWhere(context.Background(), ptype, fieldIndex, fieldValues...)
}

func load(m model.Model, lines [][]string) error {
	for _, line := range lines {
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return err
		}
	}
	return nil
}
