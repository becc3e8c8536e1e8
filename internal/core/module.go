// Package core provides the module system that assembles ragchat: a registry
// of module constructors, the lifecycle interfaces modules opt into, and the
// App that drives them from load to shutdown.
package core

import "strings"

// ModuleID identifies a module as "<namespace>.<name>", e.g. "provider.vertex".
type ModuleID string

// Namespace returns the part before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the first dot, or the whole ID when there is none.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the minimal interface every module implements.
type Module interface {
	ModuleInfo() ModuleInfo
}
