//go:build !(darwin || netbsd || freebsd || openbsd || dragonfly)

package netpoll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPollCompaction(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	defer p.Close()

	// the signal pipe's read end already occupies slot 0; everything
	// below is relative to whatever base index Open() left things at.
	base := len(p.regs)

	var cookies [4]interface{}
	for i := 0; i < 4; i++ {
		c, err := p.AddIO(100+i, true, false, true, i)
		require.NoError(t, err)
		cookies[i] = c
	}
	require.Equal(t, base+4, len(p.regs))

	require.NoError(t, p.DelIO(cookies[1]))
	require.NoError(t, p.DelIO(cookies[2]))

	require.Equal(t, base+2, len(p.regs), "tail should be trimmed after deleting the middle two slots")

	c, err := p.AddIO(200, true, false, true, "new")
	require.NoError(t, err)
	reg := c.(*pollReg)
	require.Equal(t, base+2, reg.idx, "new registration should land in the compacted slot")
	require.Equal(t, base+3, len(p.regs))
}

func TestPollHeapsStayPacked(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	defer p.Close()

	var cookies []interface{}
	for i := 0; i < 6; i++ {
		c, err := p.AddIO(400+i, true, false, false, i)
		require.NoError(t, err)
		cookies = append(cookies, c)
	}

	require.NoError(t, p.DelIO(cookies[0]))
	require.NoError(t, p.DelIO(cookies[3]))
	require.NoError(t, p.DelIO(cookies[5]))

	// compaction runs eagerly as registrations are removed, so by the
	// time DelIO returns there should be nothing left to compact: the
	// free heap is empty and every remaining slot is live.
	require.True(t, p.free.Empty())
	require.Equal(t, len(p.regs), p.live.Len())
	for i, reg := range p.regs {
		require.NotNil(t, reg)
		require.Equal(t, i, reg.idx)
	}
}
