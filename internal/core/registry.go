package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ModuleInfo)
)

// RegisterModule records a module constructor under its ID. It panics on an
// empty ID, a nil constructor, or a duplicate registration, so mistakes show
// up at init time.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry[string(info.ID)] = info
}

// GetModule looks up a registered module.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[id]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]ModuleInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sortInfos(out)
	return out
}

// GetModulesByNamespace returns the modules whose ID starts with
// "<namespace>.", sorted by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."

	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []ModuleInfo
	for id, info := range registry {
		if strings.HasPrefix(id, prefix) {
			out = append(out, info)
		}
	}
	sortInfos(out)
	return out
}

func sortInfos(infos []ModuleInfo) {
	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// resetRegistry clears the registry. Tests only.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ModuleInfo)
}
