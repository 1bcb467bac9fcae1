package engine

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/stretchr/testify/mock"

	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// registryMock is a mock AuthorityRegistry.
type registryMock struct {
	mock.Mock
}

func (m *registryMock) Snapshot(position idx.Block) (*iauth.Snapshot, error) {
	args := m.Called(position)
	s, _ := args.Get(0).(*iauth.Snapshot)
	return s, args.Error(1)
}
