package uploader_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/openshelf/shelf-sync-node/uploader"
)

func TestFinalityProber(t *testing.T) {
	initial := 30 * time.Second
	max := time.Hour

	t.Run("unknown id is due immediately", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())
		assert.True(t, p.Due("tx1"))
	})

	t.Run("failed probe backs off", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		p.Observe("tx1", false)
		assert.False(t, p.Due("tx1"))

		clk.Add(initial - time.Second)
		assert.False(t, p.Due("tx1"))

		clk.Add(time.Second)
		assert.True(t, p.Due("tx1"))
	})

	t.Run("backoff doubles per failure", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		p.Observe("tx1", false) // 30s
		clk.Add(initial)
		p.Observe("tx1", false) // 60s

		clk.Add(time.Minute - time.Second)
		assert.False(t, p.Due("tx1"))
		clk.Add(time.Second)
		assert.True(t, p.Due("tx1"))
	})

	t.Run("backoff is bounded", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		for i := 0; i < 20; i++ {
			p.Observe("tx1", false)
			clk.Add(max)
		}
		// After saturation the id comes due within one max interval.
		p.Observe("tx1", false)
		clk.Add(max)
		assert.True(t, p.Due("tx1"))
	})

	t.Run("settlement clears the state", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		p.Observe("tx1", false)
		assert.False(t, p.Due("tx1"))

		p.Observe("tx1", true)
		assert.True(t, p.Due("tx1"))
	})

	t.Run("forget drops tracking", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		p.Observe("tx1", false)
		p.Forget("tx1")
		assert.True(t, p.Due("tx1"))
	})

	t.Run("ids back off independently", func(t *testing.T) {
		clk := clock.NewMock()
		p := uploader.NewFinalityProber(clk, initial, max, zerolog.Nop())

		p.Observe("tx1", false)
		assert.False(t, p.Due("tx1"))
		assert.True(t, p.Due("tx2"))
	})
}
