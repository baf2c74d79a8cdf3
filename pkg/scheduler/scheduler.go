// Package scheduler implements context-affinity instance selection and the
// FIFO waiter queue with affinity jump-ahead described for the pool.
package scheduler

import (
	"github.com/hearthai/hearth/pkg/instance"
)

// Select chooses the best idle candidate for a request with the given exact
// and prefix fingerprints, following the priority order: exact-context
// match, then prefix-context match, then any idle instance. Ties within a
// tier are broken by most-recently-used. Returns nil if no candidate is idle.
func Select(candidates []*instance.Instance, exactFingerprint, prefixFingerprint string) *instance.Instance {
	var exact, prefix, any []*instance.Instance
	for _, inst := range candidates {
		if inst.State() != instance.StateIdle {
			continue
		}
		fp := inst.Fingerprint()
		switch {
		case exactFingerprint != "" && fp == exactFingerprint:
			exact = append(exact, inst)
		case prefixFingerprint != "" && fp == prefixFingerprint:
			prefix = append(prefix, inst)
		default:
			any = append(any, inst)
		}
	}

	for _, tier := range [][]*instance.Instance{exact, prefix, any} {
		if chosen := mostRecentlyUsed(tier); chosen != nil {
			return chosen
		}
	}
	return nil
}

func mostRecentlyUsed(candidates []*instance.Instance) *instance.Instance {
	var best *instance.Instance
	for _, inst := range candidates {
		if best == nil || inst.LastUsedAt().After(best.LastUsedAt()) {
			best = inst
		}
	}
	return best
}
