package harmonizer

import "github.com/satindergrewal/attune/internal/audio"

// Player is the narrow surface for embeddings that only need transport and
// track selection.
type Player struct {
	c *Controller
}

// Player returns the narrowed façade over c.
func (c *Controller) Player() *Player { return &Player{c: c} }

func (p *Player) Play() error                  { return p.c.Play() }
func (p *Player) Stop() error                  { return p.c.Stop() }
func (p *Player) SelectTrack(key string) error { return p.c.SelectTrack(key) }
func (p *Player) State() audio.PlaybackState   { return p.c.engine.State() }
