package pipeline

import (
	"context"
	"fmt"

	"tickd/internal/gsi"
)

// reconcileKills attributes kills above the watermark to the active weapon.
//
// The watermark advances only after the weapon increment has been committed,
// so a failed write leaves the kills attributable on a later tick. When no
// allow-listed weapon can be determined the watermark is left unmoved and the
// pending kills wait for end-of-match reconciliation.
func (p *Pipeline) reconcileKills(ctx context.Context, sess *SessionState, kills int64, my *gsi.MyView) error {
	pending := kills - sess.AttributedKills
	if pending <= 0 {
		return nil
	}

	raw := ""
	if my != nil {
		raw = my.ActiveWeapon
	}
	if raw == "" {
		raw = sess.LastActiveWeapon
	}

	weapon, ok := p.rules.ResolveWeapon(raw)
	if !ok {
		p.log.Debugf("no attributable weapon for %d pending kill(s) of %s, deferring", pending, sess.SteamID)
		return nil
	}

	if err := p.store.AddWeaponKills(ctx, sess.SteamID, weapon, pending); err != nil {
		return fmt.Errorf("attribute %d kill(s) to %s: %w", pending, weapon, err)
	}
	sess.AttributedKills = kills
	return nil
}
