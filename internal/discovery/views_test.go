package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewsStartEmpty(t *testing.T) {
	v := newViews()
	assert.Empty(t, v.AliveByRtt())
	assert.Empty(t, v.IndicesByRole())
}

func TestViewsPublishIsAtomicPerVariable(t *testing.T) {
	v := newViews()

	v.publishAliveByRtt([]int{2, 0, 1})
	assert.Equal(t, []int{2, 0, 1}, v.AliveByRtt())

	byRole := IndicesByRole{RoleMaster: {0}, RoleSlave: {1, 2}}
	v.publishIndicesByRole(byRole)
	assert.Equal(t, byRole, v.IndicesByRole())
}

func TestViewsSnapshotIsImmutable(t *testing.T) {
	v := newViews()
	v.publishAliveByRtt([]int{0, 1})

	snap := v.AliveByRtt()
	snap[0] = 99

	assert.Equal(t, []int{0, 1}, v.AliveByRtt(), "mutating a returned snapshot must not affect later reads")
}
