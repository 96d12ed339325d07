package preview

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"

	"github.com/coreman2200/ledring/internal/metrics"
	"github.com/coreman2200/ledring/internal/sector"
)

const DefaultFPS = 30

// Mirror copies store snapshots to a drawer at a fixed rate.
type Mirror struct {
	store  *sector.Store
	drawer display.Drawer
	name   string
	fps    int
	img    *image.NRGBA
	log    zerolog.Logger
}

func NewMirror(store *sector.Store, drawer display.Drawer, name string, fps int, log zerolog.Logger) *Mirror {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Mirror{
		store:  store,
		drawer: drawer,
		name:   name,
		fps:    fps,
		img:    image.NewNRGBA(image.Rect(0, 0, store.Len(), 1)),
		log:    log,
	}
}

// Render draws the current snapshot once.
func (m *Mirror) Render() error {
	for i, c := range m.store.Snapshot() {
		m.img.SetNRGBA(i, 0, c.NRGBA())
	}
	if err := m.drawer.Draw(m.drawer.Bounds(), m.img, image.Point{}); err != nil {
		return err
	}
	metrics.IncPreviewFrame(m.name)
	return nil
}

// Run redraws until ctx is done, redrawing only when the store changed, and
// blanks the drawer on exit.
func (m *Mirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	var seen uint64
	first := true
	for {
		select {
		case <-ctx.Done():
			return m.drawer.Halt()
		case <-ticker.C:
			if c := m.store.Commits(); first || c != seen {
				seen, first = c, false
				if err := m.Render(); err != nil {
					m.log.Warn().Err(err).Str("drawer", m.drawer.String()).Msg("preview draw failed")
				}
			}
		}
	}
}
