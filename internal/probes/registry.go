// Package probes provides the built-in check type registry.
package probes

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probes/apihealth"
	"github.com/jandubois/healthmon/internal/probes/command"
	"github.com/jandubois/healthmon/internal/probes/component"
	"github.com/jandubois/healthmon/internal/probes/dbcounters"
	"github.com/jandubois/healthmon/internal/probes/debug"
	"github.com/jandubois/healthmon/internal/probes/diskspace"
	"github.com/jandubois/healthmon/internal/probes/dns"
	"github.com/jandubois/healthmon/internal/probes/hadoop"
	"github.com/jandubois/healthmon/internal/probes/jobs"
	"github.com/jandubois/healthmon/internal/probes/jsonvalue"
	"github.com/jandubois/healthmon/internal/probes/mongohealth"
	"github.com/jandubois/healthmon/internal/probes/mounts"
	"github.com/jandubois/healthmon/internal/probes/procs"
	"github.com/jandubois/healthmon/internal/probes/website"
)

// ErrUnknownType is returned for a check type that is not registered.
var ErrUnknownType = errors.New("unknown check type")

// BuildFunc creates a configured check from loosely typed arguments.
type BuildFunc func(name string, args map[string]any, env probe.Env) (probe.Check, error)

// Type is a registered check type.
type Type struct {
	Description probe.Description
	Build       BuildFunc
}

var types = map[string]Type{}

func register(desc probe.Description, build BuildFunc) {
	if _, dup := types[desc.Name]; dup {
		panic("duplicate check type " + desc.Name)
	}
	types[desc.Name] = Type{Description: desc, Build: build}
}

func init() {
	hadoopKinds := []hadoop.Kind{hadoop.Health, hadoop.Capacity, hadoop.DataNode, hadoop.Version}
	for i, desc := range hadoop.Descriptions() {
		register(desc, hadoop.Builder(hadoopKinds[i]))
	}
	register(apihealth.GetDescription(), apihealth.Build)
	register(component.GetDescription(), component.Build)
	register(jobs.GetDescription(), jobs.Build)
	register(jsonvalue.GetDescription(), jsonvalue.Build)
	register(mongohealth.GetDescription(), mongohealth.Build)
	register(dbcounters.GetDescription(), dbcounters.Build)
	register(website.GetDescription(), website.Build)
	register(dns.GetDescription(), dns.Build)
	register(mounts.GetDescription(), mounts.Build)
	register(procs.GetDescription(), procs.Build)
	register(diskspace.GetDescription(), diskspace.Build)
	register(command.GetDescription(), command.Build)
	register(debug.GetDescription(), debug.Build)
}

// Names returns the registered type names in sorted order.
func Names() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registered type with the given name.
func Lookup(name string) (Type, bool) {
	t, ok := types[name]
	return t, ok
}

// Build creates a check of type typ. name defaults to the type name.
func Build(typ, name string, args map[string]any, env probe.Env) (probe.Check, error) {
	t, ok := types[typ]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	if name == "" {
		name = typ
	}
	if err := probe.ValidateName(name); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	check, err := t.Build(name, args, env.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("check %s (%s): %w", name, typ, err)
	}
	return check, nil
}

// GetAllDescriptions returns descriptions of all built-in check types,
// sorted by name.
func GetAllDescriptions() []probe.Description {
	names := Names()
	descs := make([]probe.Description, len(names))
	for i, name := range names {
		descs[i] = types[name].Description
	}
	return descs
}
