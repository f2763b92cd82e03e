package core

import (
	"fmt"
	"sort"

	"boilw/internal/types"
)

// Symbol table operations: label <-> FlagID interning. IDs are allocated from
// 1 in definition order, so a knowledge base compiled twice yields identical
// IDs.

// Define interns a label, creating the flag if needed.
func (k *Kernel) Define(label string) types.FlagID {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.defineLocked(label)
}

// DefineFlag interns a label and attaches a description.
func (k *Kernel) DefineFlag(label, description string) types.FlagID {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.defineLocked(label)
	if description != "" {
		k.descriptions[id] = description
	}
	return id
}

func (k *Kernel) defineLocked(label string) types.FlagID {
	if id, ok := k.labelToID[label]; ok {
		return id
	}
	id := k.nextID
	k.nextID++
	k.labelToID[label] = id
	k.idToLabel[id] = label
	return id
}

// Label resolves an ID back to its label. Unknown IDs render as "?N".
func (k *Kernel) Label(id types.FlagID) string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if label, ok := k.idToLabel[id]; ok {
		return label
	}
	return fmt.Sprintf("?%d", id)
}

// Lookup resolves a label without interning it.
func (k *Kernel) Lookup(label string) (types.FlagID, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	id, ok := k.labelToID[label]
	return id, ok
}

// Flags returns all defined flags sorted by ID.
func (k *Kernel) Flags() []types.Flag {
	k.mu.RLock()
	defer k.mu.RUnlock()

	flags := make([]types.Flag, 0, len(k.idToLabel))
	for id, label := range k.idToLabel {
		flags = append(flags, types.Flag{
			ID:          id,
			Label:       label,
			Description: k.descriptions[id],
		})
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].ID < flags[j].ID })
	return flags
}
