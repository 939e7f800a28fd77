package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"checkin/internal/offline"
	"checkin/internal/offline/queuetest"
)

func TestMemoryQueueContract(t *testing.T) {
	suite.Run(t, &queuetest.Suite{New: func() offline.Queue { return New() }})
}
