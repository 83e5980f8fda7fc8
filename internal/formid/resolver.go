package formid

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// PluginTable is the host data handler's view of the current load order.
// Regular holds plugin file names indexed by slot (0x00-0xFD); Light holds
// light plugin file names indexed by light index (0x000-0xFFF). A nil entry
// means the slot is unassigned.
type PluginTable struct {
	regular map[uint8]string
	light   map[uint16]string
	bySlot  map[string]pluginRef // lowercased file name -> ref
}

type pluginRef struct {
	slot  uint16
	light bool
}

// NewPluginTable builds a table from the host load order. Names are matched
// case-insensitively, like the host resolves plugin files.
func NewPluginTable() *PluginTable {
	return &PluginTable{
		regular: make(map[uint8]string),
		light:   make(map[uint16]string),
		bySlot:  make(map[string]pluginRef),
	}
}

// AddRegular registers a regular plugin at the given slot.
func (t *PluginTable) AddRegular(slot uint8, name string) {
	t.regular[slot] = name
	t.bySlot[strings.ToLower(name)] = pluginRef{slot: uint16(slot)}
}

// AddLight registers a light plugin at the given light index.
func (t *PluginTable) AddLight(index uint16, name string) {
	t.light[index&0xFFF] = name
	t.bySlot[strings.ToLower(name)] = pluginRef{slot: index & 0xFFF, light: true}
}

// Resolver translates between runtime and persistent form IDs against a
// plugin table. KnownForm, when set, lets the host veto IDs that parse but
// point at nothing (deleted records); without it any ID in an assigned slot
// is considered valid.
type Resolver struct {
	Table     *PluginTable
	KnownForm func(FormID) bool
}

// NewResolver returns a resolver over the given plugin table.
func NewResolver(table *PluginTable) *Resolver {
	return &Resolver{Table: table}
}

// ToPersistent renders the runtime ID as "plugin|0xLOCAL". The second return
// is false when the plugin slot is unassigned in the current load order.
func (r *Resolver) ToPersistent(id FormID) (string, bool) {
	if id == 0 || r.Table == nil {
		return "", false
	}
	var name string
	var ok bool
	if id.IsLight() {
		name, ok = r.Table.light[uint16(uint32(id)>>12)&0xFFF]
	} else {
		name, ok = r.Table.regular[uint8(uint32(id)>>24)]
	}
	if !ok || name == "" {
		return "", false
	}
	return fmt.Sprintf("%s|0x%06X", name, id.Local()), true
}

// FromPersistent resolves "plugin|0xLOCAL" against the current load order.
// Returns 0 when the plugin is not present or the string is malformed.
func (r *Resolver) FromPersistent(persistent string) FormID {
	plugin, local, err := SplitPersistent(persistent)
	if err != nil {
		slog.Debug("invalid persistent id", "id", persistent, "error", err)
		return 0
	}
	if r.Table == nil {
		return 0
	}
	ref, ok := r.Table.bySlot[strings.ToLower(plugin)]
	if !ok {
		slog.Debug("plugin not loaded", "plugin", plugin)
		return 0
	}
	if ref.light {
		return FormID(uint32(LightSlot)<<24 | uint32(ref.slot)<<12 | local&0xFFF)
	}
	return FormID(uint32(ref.slot)<<24 | local&0xFFFFFF)
}

// IsValid reports whether the runtime ID points into an assigned plugin slot
// and, if a KnownForm hook is installed, at a form the host knows.
func (r *Resolver) IsValid(id FormID) bool {
	if id == 0 || r.Table == nil {
		return false
	}
	if id.IsLight() {
		if _, ok := r.Table.light[uint16(uint32(id)>>12)&0xFFF]; !ok {
			return false
		}
	} else {
		if _, ok := r.Table.regular[uint8(uint32(id)>>24)]; !ok {
			return false
		}
	}
	if r.KnownForm != nil {
		return r.KnownForm(id)
	}
	return true
}

// SplitPersistent splits "plugin|0xLOCAL" into its parts.
func SplitPersistent(persistent string) (plugin string, local uint32, err error) {
	pipe := strings.IndexByte(persistent, '|')
	if pipe <= 0 {
		return "", 0, fmt.Errorf("persistent id %q: missing plugin part", persistent)
	}
	plugin = persistent[:pipe]
	localStr := strings.TrimPrefix(strings.TrimPrefix(persistent[pipe+1:], "0x"), "0X")
	v, perr := strconv.ParseUint(localStr, 16, 32)
	if perr != nil {
		return "", 0, fmt.Errorf("persistent id %q: bad local id: %w", persistent, perr)
	}
	return plugin, uint32(v), nil
}

// PluginOf returns the plugin part of a persistent ID, or "" if malformed.
func PluginOf(persistent string) string {
	plugin, _, err := SplitPersistent(persistent)
	if err != nil {
		return ""
	}
	return plugin
}
